package loaders

import (
	"context"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"danesh/internal/rag/schema"
)

var (
	// mdImageRe matches Markdown image syntax: ![caption](url)
	mdImageRe = regexp.MustCompile(`!\[(.*?)\]\((.*?)\)`)
	// mdChartRe matches a fenced chart placeholder whose body is a numeric series.
	mdChartRe = regexp.MustCompile("(?s)```chart\\s*\n(.*?)```")
)

// loadMarkdown reads a Markdown file as text and additionally extracts media
// descriptors: image references, pipe tables (serialized to a structured
// sidecar) and chart fences (rendered to a sidecar image).
func (r *Registry) loadMarkdown(ctx context.Context, path string) (*schema.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := string(content)

	doc := &schema.Document{
		ID:   uuid.New().String(),
		Text: text,
	}

	for _, m := range mdImageRe.FindAllStringSubmatch(text, -1) {
		doc.Media = append(doc.Media, schema.MediaDescriptor{
			Type:    schema.MediaTypeImage,
			URL:     m[2],
			Caption: m[1],
			Source:  path,
		})
	}

	tables := findPipeTables(text)
	charts := mdChartRe.FindAllStringSubmatch(text, -1)
	if len(tables) == 0 && len(charts) == 0 {
		return doc, nil
	}

	dir, err := mediaDir(path)
	if err != nil {
		return nil, err
	}

	for i, rows := range tables {
		headers := rows[0]
		sidecar, err := writeTableSidecar(dir, i, headers, rows[1:])
		if err != nil {
			r.log.WithError(err).WithField("path", path).Warn("failed to serialize table media")
			continue
		}
		doc.Media = append(doc.Media, schema.MediaDescriptor{
			Type:    schema.MediaTypeTable,
			URL:     sidecar,
			Caption: strings.Join(headers, ", "),
			Source:  path,
		})
	}

	for i, m := range charts {
		values := parseChartValues(m[1])
		sidecar, err := renderChartSidecar(dir, i, values)
		if err != nil {
			r.log.WithError(err).WithField("path", path).Warn("failed to render chart media")
			continue
		}
		doc.Media = append(doc.Media, schema.MediaDescriptor{
			Type:   schema.MediaTypeChart,
			URL:    sidecar,
			Source: path,
		})
	}

	return doc, nil
}

// findPipeTables scans for Markdown pipe tables and returns each as rows of
// cells (header row first). The separator row (|---|---|) is dropped.
func findPipeTables(text string) [][][]string {
	var tables [][][]string
	var current [][]string

	flush := func() {
		if len(current) >= 2 {
			tables = append(tables, current)
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "|") {
			flush()
			continue
		}
		cells := splitPipeRow(trimmed)
		if isSeparatorRow(cells) {
			continue
		}
		current = append(current, cells)
	}
	flush()

	return tables
}

func splitPipeRow(line string) []string {
	line = strings.Trim(line, "|")
	parts := strings.Split(line, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, ":-") != "" {
			return false
		}
	}
	return len(cells) > 0
}
