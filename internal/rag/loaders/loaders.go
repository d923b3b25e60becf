package loaders

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"danesh/internal/rag/schema"
	"danesh/pkg/logger"
)

// ErrUnsupportedFormat is returned when no loader is registered for a file's
// extension. Callers treat it as a per-file failure, not a batch failure.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// loaderFunc converts one file into a Document.
type loaderFunc func(ctx context.Context, path string) (*schema.Document, error)

// Registry dispatches file loading by extension. The set of formats is fixed
// at construction; format variation is data here, not separate code paths.
type Registry struct {
	loaders map[string]loaderFunc
	log     *logger.Logger
}

// NewRegistry creates a Registry with every supported format registered.
func NewRegistry(log *logger.Logger) *Registry {
	r := &Registry{
		loaders: make(map[string]loaderFunc),
		log:     log,
	}

	r.loaders[".txt"] = loadText
	r.loaders[".csv"] = loadCSV
	r.loaders[".md"] = r.loadMarkdown
	r.loaders[".pdf"] = r.loadPDF
	r.loaders[".docx"] = loadDocx
	r.loaders[".pptx"] = loadPptx
	// .ppt is accepted only in its OOXML package form; legacy binary
	// presentations are rejected at the upload boundary.
	r.loaders[".ppt"] = loadPptx
	r.loaders[".html"] = r.loadHTML
	r.loaders[".htm"] = r.loadHTML

	return r
}

// Supported reports whether files with the given extension can be loaded.
func (r *Registry) Supported(ext string) bool {
	_, ok := r.loaders[strings.ToLower(ext)]
	return ok
}

// Load converts a file into a Document, dispatching on its extension.
// Unknown extensions fail with ErrUnsupportedFormat.
func (r *Registry) Load(ctx context.Context, path string) (*schema.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	load, ok := r.loaders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	doc, err := load(ctx, path)
	if err != nil {
		return nil, err
	}
	doc.Source = path
	doc.Format = ext
	return doc, nil
}

// mediaDir returns the sidecar directory for a source file and creates it.
// All loader side effects (rendered charts, serialized tables) stay under
// media/<stem>/ next to the source.
func mediaDir(path string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dir := filepath.Join(filepath.Dir(path), "media", stem)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create media dir: %w", err)
	}
	return dir, nil
}
