package embeddings

import (
	"context"
	"errors"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/zatekoja/productsearch/pkg/config"
	apperrors "github.com/zatekoja/productsearch/pkg/errors"
)

const openAIProvider = "openai"

// OpenAIClient embeds text through any OpenAI-compatible embeddings API.
type OpenAIClient struct {
	embedder embeddings.Embedder
	model    string
}

// NewOpenAIClient creates an OpenAI-compatible embedding client.
func NewOpenAIClient(cfg *config.EmbeddingConfig) (*OpenAIClient, error) {
	if cfg == nil {
		return nil, errors.New("embedding config is required")
	}

	token := cfg.APIKey
	if token == "" {
		// Local OpenAI-compatible servers accept any token.
		token = "none"
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}
	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(batchSize),
	)
	if err != nil {
		return nil, err
	}

	return &OpenAIClient{embedder: embedder, model: cfg.Model}, nil
}

// Model returns the model tag stored with each vector.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Embed returns the vector for a single text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := c.embedder.EmbedQuery(ctx, text)
	recordEmbeddingMetric(ctx, openAIProvider, c.model, 0, time.Since(start), err)
	if err != nil {
		return nil, apperrors.NewExternalError("openai embedding request failed", err)
	}
	if len(vec) == 0 {
		return nil, apperrors.NewExternalError("openai returned an empty embedding", nil)
	}
	return vec, nil
}

// EmbedBatch returns one vector per text, in input order.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := c.embedder.EmbedDocuments(ctx, texts)
	recordEmbeddingMetric(ctx, openAIProvider, c.model, 0, time.Since(start), err)
	if err != nil {
		return nil, apperrors.NewExternalError("openai embedding request failed", err)
	}
	return vecs, nil
}
