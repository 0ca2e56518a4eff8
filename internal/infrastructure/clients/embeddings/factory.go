package embeddings

import (
	"fmt"

	"github.com/zatekoja/productsearch/internal/domain/providers"
	"github.com/zatekoja/productsearch/pkg/config"
)

// NewProvider builds the configured embedding provider, wrapped with the
// query cache. shared may be nil when Redis is unavailable.
func NewProvider(cfg *config.EmbeddingConfig, shared providers.CacheProvider) (providers.EmbeddingProvider, error) {
	var inner providers.EmbeddingProvider
	switch cfg.Provider {
	case "gemini":
		client, err := NewGeminiClient(cfg)
		if err != nil {
			return nil, err
		}
		inner = client
	case "openai":
		client, err := NewOpenAIClient(cfg)
		if err != nil {
			return nil, err
		}
		inner = client
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}

	return NewCachedProvider(inner, cfg.QueryCacheSize, shared, cfg.QueryCacheTTL), nil
}
