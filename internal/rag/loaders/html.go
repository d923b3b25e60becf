package loaders

import (
	"context"
	"fmt"
	"os"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/google/uuid"
	"golang.org/x/net/html"

	"danesh/internal/rag/schema"
)

// loadHTML converts an HTML file to Markdown text and scans the DOM for
// media: <img> elements, <table> elements (serialized to structured
// sidecars) and chart placeholders (any element carrying a data-chart
// attribute with a numeric series, rendered to a sidecar image).
func (r *Registry) loadHTML(ctx context.Context, path string) (*schema.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text, err := htmltomarkdown.ConvertString(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to convert html: %w", err)
	}

	root, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	doc := &schema.Document{
		ID:   uuid.New().String(),
		Text: text,
	}

	var tables [][][]string
	var charts [][]float64
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "img":
				doc.Media = append(doc.Media, schema.MediaDescriptor{
					Type:    schema.MediaTypeImage,
					URL:     attr(n, "src"),
					Caption: attr(n, "alt"),
					Source:  path,
				})
			case "table":
				if rows := tableRows(n); len(rows) > 0 {
					tables = append(tables, rows)
				}
			}
			if series := attr(n, "data-chart"); series != "" {
				if values := parseChartValues(series); len(values) > 0 {
					charts = append(charts, values)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if len(tables) == 0 && len(charts) == 0 {
		return doc, nil
	}

	dir, err := mediaDir(path)
	if err != nil {
		return nil, err
	}

	for i, rows := range tables {
		sidecar, err := writeTableSidecar(dir, i, rows[0], rows[1:])
		if err != nil {
			r.log.WithError(err).WithField("path", path).Warn("failed to serialize table media")
			continue
		}
		doc.Media = append(doc.Media, schema.MediaDescriptor{
			Type:    schema.MediaTypeTable,
			URL:     sidecar,
			Caption: strings.Join(rows[0], ", "),
			Source:  path,
		})
	}

	for i, values := range charts {
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

// attr returns the value of a named attribute, or "".
func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// tableRows flattens a <table> node into rows of trimmed cell text.
func tableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, strings.TrimSpace(nodeText(c)))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return rows
}

// nodeText concatenates all text descendants of a node.
func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}
