package vectorstore

import (
	"errors"
	"math"
	"testing"

	"danesh/internal/rag/schema"
)

func TestAddRejectsDimensionMismatch(t *testing.T) {
	ix := New()
	if err := ix.Add(schema.Chunk{ID: "a"}, []float32{1, 0, 0}); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	if err := ix.Add(schema.Chunk{ID: "b"}, []float32{1, 0}); err == nil {
		t.Error("expected dimension mismatch error")
	}
	if err := ix.Add(schema.Chunk{ID: "c"}, nil); err == nil {
		t.Error("expected empty vector to be rejected")
	}
}

func TestSearchRanksByCosine(t *testing.T) {
	ix := New()
	vectors := map[string][]float32{
		"x":  {1, 0, 0},
		"y":  {0, 1, 0},
		"xy": {1, 1, 0},
	}
	for id, v := range vectors {
		if err := ix.Add(schema.Chunk{ID: id, Text: id}, v); err != nil {
			t.Fatalf("Add(%s) failed: %v", id, err)
		}
	}

	results, err := ix.Search([]float32{10, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.ID != "x" {
		t.Errorf("best match = %s, want x", results[0].Chunk.ID)
	}
	if math.Abs(float64(results[0].Score)-1.0) > 1e-6 {
		t.Errorf("cosine of identical direction = %f, want 1", results[0].Score)
	}
	if results[1].Chunk.ID != "xy" {
		t.Errorf("second match = %s, want xy", results[1].Chunk.ID)
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	ix := New()
	results, err := ix.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("empty index must not error, got %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results from empty index, got %v", results)
	}
}

func TestSearchRejectsDimensionMismatch(t *testing.T) {
	ix := New()
	if err := ix.Add(schema.Chunk{ID: "a"}, []float32{1, 0, 0}); err != nil {
		t.Fatal(err)
	}

	// A wrong-dimension query means the embedding model changed since the
	// build; that is a failure, not an empty result.
	if _, err := ix.Search([]float32{1, 0}, 5); err == nil {
		t.Error("expected error for query dimension mismatch")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	ix := New()
	chunks := []schema.Chunk{
		{ID: "1", Text: "first", Source: "a.txt", Seq: 0, Algorithms: []string{"QuickSort"}},
		{ID: "2", Text: "second", Source: "a.txt", Seq: 1},
	}
	if err := ix.Add(chunks[0], []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Add(chunks[1], []float32{0, 1}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Len() != 2 || loaded.Dimension() != 2 {
		t.Fatalf("loaded len=%d dim=%d", loaded.Len(), loaded.Dimension())
	}

	results, err := loaded.Search([]float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Chunk.ID != "1" {
		t.Errorf("search after reload returned %v", results)
	}
	if got := results[0].Chunk.Algorithms; len(got) != 1 || got[0] != "QuickSort" {
		t.Errorf("algorithm metadata lost on round trip: %v", got)
	}
}

func TestLoadAbsent(t *testing.T) {
	_, err := Load(t.TempDir())
	if !errors.Is(err, ErrIndexAbsent) {
		t.Errorf("expected ErrIndexAbsent, got %v", err)
	}
}

func TestMediaIndexJoin(t *testing.T) {
	entries := []schema.MediaDescriptor{
		{Type: schema.MediaTypeImage, URL: "a.png", Source: "doc1.md"},
		{Type: schema.MediaTypeTable, URL: "t.json", Source: "doc2.md"},
	}

	got := FilterBySources(entries, map[string]struct{}{"doc1.md": {}})
	if len(got) != 1 || got[0].URL != "a.png" {
		t.Errorf("join returned %v", got)
	}
}
