package providers

import "context"

// EmbeddingProvider turns text into a fixed-length vector using an external
// model.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Model is stored alongside each vector as its model version.
	Model() string
}
