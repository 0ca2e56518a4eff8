package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/zatekoja/productsearch/internal/domain/providers"
	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
	"github.com/zatekoja/productsearch/pkg/utils"
)

// DefaultQueryCacheSize is the number of query vectors kept in memory.
const DefaultQueryCacheSize = 1024

// CachedProvider puts an in-process LRU and an optional shared cache in front
// of an EmbeddingProvider. Only single-text Embed calls are cached; those are
// search queries, which repeat, so they are normalized before keying and
// embedding. Batch calls embed product text and pass straight through.
type CachedProvider struct {
	inner  providers.EmbeddingProvider
	local  *lru.Cache[string, []float32]
	shared providers.CacheProvider
	ttl    time.Duration
}

// NewCachedProvider wraps inner. shared may be nil.
func NewCachedProvider(inner providers.EmbeddingProvider, size int, shared providers.CacheProvider, ttl time.Duration) *CachedProvider {
	if size <= 0 {
		size = DefaultQueryCacheSize
	}
	local, _ := lru.New[string, []float32](size)
	return &CachedProvider{inner: inner, local: local, shared: shared, ttl: ttl}
}

func (c *CachedProvider) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.inner.Model() + "\x00" + text))
	return "embedding:query:" + hex.EncodeToString(sum[:])
}

// Embed returns a cached vector when available.
func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if normalized := utils.NormalizeQuery(text); normalized != "" {
		text = normalized
	}
	key := c.cacheKey(text)

	if vec, ok := c.local.Get(key); ok {
		recordCacheHit(ctx, "local")
		return vec, nil
	}

	if c.shared != nil {
		if raw, err := c.shared.Get(ctx, key); err == nil {
			var vec []float32
			if err := json.Unmarshal(raw, &vec); err == nil && len(vec) > 0 {
				recordCacheHit(ctx, "shared")
				c.local.Add(key, vec)
				return vec, nil
			}
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.local.Add(key, vec)
	if c.shared != nil {
		if raw, err := json.Marshal(vec); err == nil {
			if err := c.shared.Set(ctx, key, raw, int(c.ttl.Seconds())); err != nil {
				observability.LoggerFromContext(ctx).Debug().Err(err).Msg("failed to cache query embedding")
			}
		}
	}
	return vec, nil
}

// EmbedBatch is not cached.
func (c *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EmbedBatch(ctx, texts)
}

// Model returns the inner provider's model.
func (c *CachedProvider) Model() string {
	return c.inner.Model()
}

// Len reports the number of vectors held in memory.
func (c *CachedProvider) Len() int {
	return c.local.Len()
}
