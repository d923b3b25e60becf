package space

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"danesh/internal/embedding"
	"danesh/internal/rag/extract"
	"danesh/internal/rag/loaders"
	"danesh/internal/rag/schema"
	"danesh/internal/rag/splitters"
	"danesh/internal/rag/vectorstore"
	"danesh/pkg/logger"
)

var (
	// ErrEmbeddingUnavailable aborts a build; the previous index stays
	// servable.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")
	// ErrNoDocuments fails a build over an empty document set.
	ErrNoDocuments = errors.New("no documents to index")
)

// Builder runs the ingestion pipeline for a space: load every document,
// chunk, extract algorithm names, embed, and persist the vector index, the
// deduplicated algorithm index and the media sidecar index.
//
// Builds for one space never run concurrently: requests are keyed through a
// singleflight group, so a request arriving while a build is in flight
// attaches to that build instead of starting a second writer. Reads stay
// safe during a build because the new index is written to a fresh directory
// and swapped in only on success.
type Builder struct {
	manager  *Manager
	loaders  *loaders.Registry
	splitter *splitters.CharSplitter
	embedder embedding.Model
	log      *logger.Logger
	group    singleflight.Group
}

// NewBuilder wires the ingestion pipeline.
func NewBuilder(manager *Manager, reg *loaders.Registry, splitter *splitters.CharSplitter, embedder embedding.Model, log *logger.Logger) *Builder {
	return &Builder{
		manager:  manager,
		loaders:  reg,
		splitter: splitter,
		embedder: embedder,
		log:      log,
	}
}

// ScheduleBuild starts a build for the space out-of-band and returns
// immediately. A failed build only logs; the previous index is untouched.
//
// A request arriving while a build is already in flight queues behind it:
// the in-flight build may have read the docs directory before this
// request's documents landed, so after it finishes the request triggers one
// more build. The second pass is guaranteed fresh — a singleflight call only
// starts after the previous one completed, which is after this request's
// documents were already on disk — so two passes always suffice.
func (b *Builder) ScheduleBuild(name string) error {
	if !b.manager.Exists(name) {
		if err := validateName(name); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	go func() {
		log := b.log.WithSpace(name)
		for attempt := 0; ; attempt++ {
			_, err, shared := b.group.Do(name, func() (interface{}, error) {
				return nil, b.Build(context.Background(), name)
			})
			switch {
			case err != nil:
				log.WithError(err).Error("background build failed")
				return
			case !shared:
				log.Info("background build finished")
				return
			case attempt > 0:
				// A shared second pass joined a build that itself started
				// after this request's documents were on disk.
				log.Info("joined a fresh build, documents already covered")
				return
			}
			log.Info("joined build already in flight, queuing a rebuild")
		}
	}()
	return nil
}

// Build runs one build synchronously. Unreadable or unsupported files are
// skipped with a warning; an empty document set or an unreachable embedding
// backend fails the build with the previous index left in place.
func (b *Builder) Build(ctx context.Context, name string) error {
	docsDir, err := b.manager.DocsDir(name)
	if err != nil {
		return err
	}
	log := b.log.WithSpace(name)

	docs := b.loadDocuments(ctx, docsDir)
	if len(docs) == 0 {
		return fmt.Errorf("%w: space %s", ErrNoDocuments, name)
	}

	chunks, media := b.chunkDocuments(docs)
	log.WithField("documents", len(docs)).WithField("chunks", len(chunks)).Info("embedding chunks")

	index, err := b.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}
	algoIndex, err := b.buildAlgorithmIndex(ctx, chunks)
	if err != nil {
		return err
	}

	return b.persist(name, index, algoIndex, media)
}

// loadDocuments walks the docs tree and loads every supported file,
// skipping the media sidecar directories the loaders emit.
func (b *Builder) loadDocuments(ctx context.Context, docsDir string) []*schema.Document {
	var docs []*schema.Document
	_ = filepath.WalkDir(docsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			b.log.WithError(err).WithField("path", path).Warn("skipping unreadable path")
			return nil
		}
		if d.IsDir() {
			if d.Name() == "media" {
				return filepath.SkipDir
			}
			return nil
		}

		doc, err := b.loaders.Load(ctx, path)
		if err != nil {
			// A bad file must not block indexing the rest of the batch.
			b.log.WithError(err).WithField("path", path).Warn("skipping document")
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	return docs
}

// chunkDocuments splits every document and tags each chunk with its source
// and the algorithm names it mentions.
func (b *Builder) chunkDocuments(docs []*schema.Document) ([]schema.Chunk, []schema.MediaDescriptor) {
	var chunks []schema.Chunk
	var media []schema.MediaDescriptor
	for _, doc := range docs {
		media = append(media, doc.Media...)
		for seq, text := range b.splitter.Split(doc.Text) {
			chunks = append(chunks, schema.Chunk{
				ID:         uuid.New().String(),
				Text:       text,
				Source:     doc.Source,
				Seq:        seq,
				Algorithms: extract.Algorithms(text),
			})
		}
	}
	return chunks, media
}

// embedChunks embeds every chunk and assembles the main index.
func (b *Builder) embedChunks(ctx context.Context, chunks []schema.Chunk) (*vectorstore.Index, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	index := vectorstore.New()
	for i, c := range chunks {
		if err := index.Add(c, vectors[i]); err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrEmbeddingUnavailable, i, err)
		}
	}
	return index, nil
}

// buildAlgorithmIndex embeds the union of all chunks' algorithm names,
// deduplicated across the space.
func (b *Builder) buildAlgorithmIndex(ctx context.Context, chunks []schema.Chunk) (*vectorstore.Index, error) {
	seen := make(map[string]struct{})
	var names []string
	for _, c := range chunks {
		for _, name := range c.Algorithms {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	index := vectorstore.New()
	if len(names) == 0 {
		return index, nil
	}

	vectors, err := b.embedder.EmbedBatch(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	for i, name := range names {
		entry := schema.Chunk{ID: uuid.New().String(), Text: name}
		if err := index.Add(entry, vectors[i]); err != nil {
			return nil, fmt.Errorf("%w: algorithm %q: %v", ErrEmbeddingUnavailable, name, err)
		}
	}
	return index, nil
}

// persist writes the new indexes into a fresh directory and swaps it over
// the live one only when everything has been written. Readers of the old
// index are never exposed to a partially written build.
func (b *Builder) persist(name string, index, algoIndex *vectorstore.Index, media []schema.MediaDescriptor) error {
	liveDir, err := b.manager.IndexDir(name)
	if err != nil {
		return err
	}

	buildDir := liveDir + ".build-" + uuid.New().String()
	defer os.RemoveAll(buildDir)

	if err := index.Save(buildDir); err != nil {
		return err
	}
	if err := algoIndex.Save(filepath.Join(buildDir, "algos")); err != nil {
		return err
	}
	if err := vectorstore.SaveMediaIndex(filepath.Join(buildDir, vectorstore.MediaIndexFileName), media); err != nil {
		return err
	}

	oldDir := liveDir + ".old-" + uuid.New().String()
	if err := os.Rename(liveDir, oldDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to retire previous index: %w", err)
	}
	if err := os.Rename(buildDir, liveDir); err != nil {
		// Roll the previous index back into place.
		_ = os.Rename(oldDir, liveDir)
		return fmt.Errorf("failed to activate new index: %w", err)
	}
	_ = os.RemoveAll(oldDir)
	return nil
}
