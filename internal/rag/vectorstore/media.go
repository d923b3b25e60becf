package vectorstore

import (
	"encoding/json"
	"fmt"
	"os"

	"danesh/internal/rag/schema"
)

// MediaIndexFileName is the sidecar file listing every media descriptor of a
// space, keyed by source document.
const MediaIndexFileName = "media_index.json"

// SaveMediaIndex persists the media descriptors for a space.
func SaveMediaIndex(path string, entries []schema.MediaDescriptor) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode media index: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write media index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize media index: %w", err)
	}
	return nil
}

// LoadMediaIndex reads the media descriptors for a space. A missing file is
// an empty index, not an error.
func LoadMediaIndex(path string) ([]schema.MediaDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read media index: %w", err)
	}

	var entries []schema.MediaDescriptor
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode media index: %w", err)
	}
	return entries, nil
}

// FilterBySources returns the media entries whose source document is among
// the given sources. This is a join on attribution, not a similarity search.
func FilterBySources(entries []schema.MediaDescriptor, sources map[string]struct{}) []schema.MediaDescriptor {
	var out []schema.MediaDescriptor
	for _, e := range entries {
		if _, ok := sources[e.Source]; ok {
			out = append(out, e)
		}
	}
	return out
}
