package loaders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/unidoc/unioffice/v2/document"
	"github.com/unidoc/unioffice/v2/presentation"

	"danesh/internal/rag/schema"
)

// loadDocx extracts a Word document as text: paragraph runs in document
// order, then each table flattened to comma-joined rows.
func loadDocx(ctx context.Context, path string) (*schema.Document, error) {
	doc, err := document.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}
	defer doc.Close()

	var lines []string
	for _, p := range doc.Paragraphs() {
		var sb strings.Builder
		for _, run := range p.Runs() {
			sb.WriteString(run.Text())
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			lines = append(lines, text)
		}
	}

	for _, table := range doc.Tables() {
		for _, row := range table.Rows() {
			var cells []string
			for _, cell := range row.Cells() {
				cells = append(cells, cellText(cell))
			}
			lines = append(lines, strings.Join(cells, ", "))
		}
	}

	return &schema.Document{
		ID:   uuid.New().String(),
		Text: strings.Join(lines, "\n"),
	}, nil
}

// cellText joins all paragraph runs of a table cell.
func cellText(cell document.Cell) string {
	var sb strings.Builder
	for _, p := range cell.Paragraphs() {
		for _, run := range p.Runs() {
			sb.WriteString(run.Text())
		}
	}
	return strings.TrimSpace(sb.String())
}

// loadPptx extracts all slide text boxes, newline-joined, in slide order.
func loadPptx(ctx context.Context, path string) (*schema.Document, error) {
	ppt, err := presentation.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open presentation: %w", err)
	}
	defer ppt.Close()

	return &schema.Document{
		ID:   uuid.New().String(),
		Text: ppt.ExtractText().Text(),
	}, nil
}
