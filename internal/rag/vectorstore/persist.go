package vectorstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"danesh/internal/rag/schema"
)

// IndexFileName is the on-disk name of a serialized index inside its
// directory.
const IndexFileName = "index.json"

// indexFile is the JSON codec for an Index. Chunks and vectors stay
// parallel; the dimension is stored so a load can validate the file.
type indexFile struct {
	Dimension int            `json:"dimension"`
	Chunks    []schema.Chunk `json:"chunks"`
	Vectors   [][]float32    `json:"vectors"`
}

// Save serializes the index into dir. The file is written to a temp name
// and renamed into place so a reader never sees a torn file.
func (ix *Index) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index dir: %w", err)
	}

	data, err := json.Marshal(indexFile{
		Dimension: ix.dimension,
		Chunks:    ix.chunks,
		Vectors:   ix.vectors,
	})
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	tmp := filepath.Join(dir, IndexFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, IndexFileName)); err != nil {
		return fmt.Errorf("failed to finalize index: %w", err)
	}
	return nil
}

// Load reads a serialized index from dir. A missing file yields
// ErrIndexAbsent.
func Load(dir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, IndexFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrIndexAbsent
		}
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}
	if len(f.Chunks) != len(f.Vectors) {
		return nil, fmt.Errorf("corrupt index: %d chunks vs %d vectors", len(f.Chunks), len(f.Vectors))
	}
	for i, v := range f.Vectors {
		if len(v) != f.Dimension {
			return nil, fmt.Errorf("corrupt index: vector %d has dimension %d, want %d", i, len(v), f.Dimension)
		}
	}

	return &Index{
		dimension: f.Dimension,
		chunks:    f.Chunks,
		vectors:   f.Vectors,
	}, nil
}
