package space

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"danesh/internal/embedding"
	"danesh/internal/rag/schema"
	"danesh/internal/rag/vectorstore"
	"danesh/pkg/logger"
)

// Searcher answers similarity queries against a space's persisted indexes.
// Indexes are loaded per query from the live directory; a build swapping in
// a fresh directory does not disturb a load already in progress.
type Searcher struct {
	manager  *Manager
	embedder embedding.Model
	log      *logger.Logger
}

// NewSearcher creates a Searcher.
func NewSearcher(manager *Manager, embedder embedding.Model, log *logger.Logger) *Searcher {
	return &Searcher{manager: manager, embedder: embedder, log: log}
}

// Search embeds the query and returns the k nearest chunks from the space's
// main index. A space without a built index yields an empty result, not an
// error.
func (s *Searcher) Search(ctx context.Context, name, query string, k int) ([]schema.SearchResult, error) {
	dir, err := s.manager.IndexDir(name)
	if err != nil {
		return nil, err
	}
	return s.search(ctx, dir, query, k)
}

// SearchAlgorithms runs the same contract against the space's algorithm
// index, whose entries are deduplicated algorithm names.
func (s *Searcher) SearchAlgorithms(ctx context.Context, name, query string, k int) ([]schema.SearchResult, error) {
	dir, err := s.manager.AlgoIndexDir(name)
	if err != nil {
		return nil, err
	}
	return s.search(ctx, dir, query, k)
}

// MediaResult is a text search result set joined with the media extracted
// from the same source documents.
type MediaResult struct {
	Results []schema.SearchResult    `json:"results"`
	Media   []schema.MediaDescriptor `json:"media"`
}

// RetrieveWithMedia performs a text search, then filters the media index to
// entries whose source document matches one of the retrieved chunks. The
// media part is a join on attribution, not a similarity search.
func (s *Searcher) RetrieveWithMedia(ctx context.Context, name, query string, k int) (*MediaResult, error) {
	results, err := s.Search(ctx, name, query, k)
	if err != nil {
		return nil, err
	}

	mediaPath, err := s.manager.MediaIndexPath(name)
	if err != nil {
		return nil, err
	}
	entries, err := vectorstore.LoadMediaIndex(mediaPath)
	if err != nil {
		return nil, err
	}

	sources := make(map[string]struct{}, len(results))
	for _, r := range results {
		sources[r.Chunk.Source] = struct{}{}
	}

	return &MediaResult{
		Results: results,
		Media:   vectorstore.FilterBySources(entries, sources),
	}, nil
}

func (s *Searcher) search(ctx context.Context, dir, query string, k int) ([]schema.SearchResult, error) {
	index, err := vectorstore.Load(dir)
	if err != nil {
		if errors.Is(err, vectorstore.ErrIndexAbsent) {
			s.log.WithField("dir", filepath.Base(dir)).Debug("search against absent index")
			return nil, nil
		}
		return nil, err
	}
	if index.Len() == 0 {
		return nil, nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", ErrEmbeddingUnavailable)
	}

	return index.Search(vector, k)
}
