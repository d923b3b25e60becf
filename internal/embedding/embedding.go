package embedding

import "context"

// Model is the interface for a text embedding backend.
//
// An empty vector means "could not embed"; callers must not treat it as a
// valid zero-vector.
type Model interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
