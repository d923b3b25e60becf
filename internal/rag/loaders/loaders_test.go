package loaders

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"danesh/internal/rag/schema"
	"danesh/pkg/logger"
)

func newTestRegistry() *Registry {
	return NewRegistry(logger.New("loaders-test"))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadText(t *testing.T) {
	r := newTestRegistry()
	path := writeFile(t, t.TempDir(), "note.txt", "hello knowledge")

	doc, err := r.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.Text != "hello knowledge" {
		t.Errorf("Text = %q", doc.Text)
	}
	if doc.Source != path || doc.Format != ".txt" {
		t.Errorf("attribution wrong: source=%q format=%q", doc.Source, doc.Format)
	}
}

func TestLoadCSVFlattensRows(t *testing.T) {
	r := newTestRegistry()
	path := writeFile(t, t.TempDir(), "data.csv", "a,b,c\n1,2,3\n")

	doc, err := r.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := "a, b, c\n1, 2, 3"
	if doc.Text != want {
		t.Errorf("Text = %q, want %q", doc.Text, want)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	r := newTestRegistry()
	path := writeFile(t, t.TempDir(), "binary.xyz", "data")

	_, err := r.Load(context.Background(), path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestLoadMarkdownMedia(t *testing.T) {
	r := newTestRegistry()
	dir := t.TempDir()
	content := strings.Join([]string{
		"# Title",
		"",
		"![diagram](assets/diagram.png)",
		"",
		"| name | value |",
		"| --- | --- |",
		"| alpha | 1 |",
		"| beta | 2 |",
		"",
		"```chart",
		"1, 4, 9, 16",
		"```",
	}, "\n")
	path := writeFile(t, dir, "report.md", content)

	doc, err := r.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	byType := map[string]int{}
	for _, m := range doc.Media {
		byType[m.Type]++
		if m.Source != path {
			t.Errorf("media source = %q, want %q", m.Source, path)
		}
	}
	if byType[schema.MediaTypeImage] != 1 {
		t.Errorf("expected 1 image descriptor, got %d", byType[schema.MediaTypeImage])
	}
	if byType[schema.MediaTypeTable] != 1 {
		t.Errorf("expected 1 table descriptor, got %d", byType[schema.MediaTypeTable])
	}
	if byType[schema.MediaTypeChart] != 1 {
		t.Errorf("expected 1 chart descriptor, got %d", byType[schema.MediaTypeChart])
	}

	// sidecars live under media/<stem>/
	for _, m := range doc.Media {
		if m.Type == schema.MediaTypeImage {
			continue
		}
		if !strings.Contains(m.URL, filepath.Join("media", "report")) {
			t.Errorf("sidecar %q not under media/report/", m.URL)
		}
		if _, err := os.Stat(m.URL); err != nil {
			t.Errorf("sidecar %q not written: %v", m.URL, err)
		}
	}
}

func TestLoadHTMLMedia(t *testing.T) {
	r := newTestRegistry()
	dir := t.TempDir()
	content := `<html><body>
<p>Quarterly summary.</p>
<img src="fig1.png" alt="figure one">
<table><tr><th>q</th><th>rev</th></tr><tr><td>Q1</td><td>10</td></tr></table>
<div data-chart="3, 1, 4, 1, 5"></div>
</body></html>`
	path := writeFile(t, dir, "page.html", content)

	doc, err := r.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !strings.Contains(doc.Text, "Quarterly summary") {
		t.Errorf("converted text missing body content: %q", doc.Text)
	}

	byType := map[string]int{}
	for _, m := range doc.Media {
		byType[m.Type]++
	}
	if byType[schema.MediaTypeImage] != 1 || byType[schema.MediaTypeTable] != 1 || byType[schema.MediaTypeChart] != 1 {
		t.Errorf("media counts = %v, want one of each", byType)
	}
}
