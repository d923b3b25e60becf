package vectorstore

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"danesh/internal/rag/schema"
)

// ErrIndexAbsent marks a search against a space that has never been built.
// Callers translate it into an empty result, not a failure.
var ErrIndexAbsent = errors.New("vector index absent")

// Index is a brute-force similarity index over parallel chunk/vector slices.
// Similarity is cosine: vectors are L2-normalized on insert and on query, so
// ranking reduces to an inner product. Build and search must both go through
// this type to keep the metric consistent.
//
// An Index is append-only while a build fills it and read-only afterwards;
// rebuilds produce a fresh Index that replaces the old one wholesale.
type Index struct {
	dimension int
	chunks    []schema.Chunk
	vectors   [][]float32
}

// New creates an empty index. The dimension is fixed by the first vector
// added.
func New() *Index {
	return &Index{}
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	return len(ix.chunks)
}

// Dimension returns the vector dimension, or 0 for an empty index.
func (ix *Index) Dimension() int {
	return ix.dimension
}

// Add appends one chunk with its embedding vector. Every entry must carry a
// vector of identical dimension; an empty vector means the chunk could not
// be embedded and is rejected.
func (ix *Index) Add(chunk schema.Chunk, vector []float32) error {
	if len(vector) == 0 {
		return errors.New("refusing to index an empty vector")
	}
	if ix.dimension == 0 {
		ix.dimension = len(vector)
	} else if len(vector) != ix.dimension {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vector), ix.dimension)
	}

	ix.chunks = append(ix.chunks, chunk)
	ix.vectors = append(ix.vectors, normalize(vector))
	return nil
}

// Search returns the k nearest chunks to the query vector by cosine
// similarity, best first. An empty index yields an empty result; a query
// vector of the wrong dimension is an error, not an empty result — it means
// the embedding model changed since the index was built.
func (ix *Index) Search(query []float32, k int) ([]schema.SearchResult, error) {
	if k <= 0 || ix.Len() == 0 {
		return nil, nil
	}
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), ix.dimension)
	}
	q := normalize(query)

	results := make([]schema.SearchResult, 0, ix.Len())
	for i, v := range ix.vectors {
		results = append(results, schema.SearchResult{
			Chunk: ix.chunks[i],
			Score: dot(v, q),
		})
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Chunks returns the indexed chunks in insertion order.
func (ix *Index) Chunks() []schema.Chunk {
	return ix.chunks
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// normalize returns the L2-normalized copy of v. The zero vector is returned
// unchanged (it will score 0 against everything).
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}
