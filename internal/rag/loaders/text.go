package loaders

import (
	"context"
	"encoding/csv"
	"os"
	"strings"

	"github.com/google/uuid"

	"danesh/internal/rag/schema"
)

// loadText reads a plain text file verbatim.
func loadText(ctx context.Context, path string) (*schema.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return &schema.Document{
		ID:   uuid.New().String(),
		Text: string(content),
	}, nil
}

// loadCSV flattens a CSV file into text, one comma-joined row per line, so
// that tabular records chunk and embed like prose.
func loadCSV(ctx context.Context, path string) (*schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // ragged rows are fine, we only flatten

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for i, row := range records {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.Join(row, ", "))
	}

	return &schema.Document{
		ID:   uuid.New().String(),
		Text: sb.String(),
	}, nil
}
