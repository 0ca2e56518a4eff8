package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/productsearch/internal/application/services"
	"github.com/zatekoja/productsearch/internal/domain/entities"
)

type recordingSuggester struct {
	mu       sync.Mutex
	prefixes []string
}

func (r *recordingSuggester) Suggest(ctx context.Context, partial string, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = append(r.prefixes, partial)
	return []string{}, nil
}

func TestCacheWarming_WarmsKeywordPrefixes(t *testing.T) {
	searches := &fakeSearchQueryRepo{keywords: []*entities.KeywordStat{
		{Query: "Filter", Count: 9},
		{Query: "fish food", Count: 4},
		{Query: "x", Count: 2},
	}}
	suggester := &recordingSuggester{}
	svc := services.NewCacheWarmingService(searches, suggester)

	warmed, err := svc.WarmCache(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"fi", "fil", "filt", "fis", "fish"}, suggester.prefixes)
	assert.Equal(t, 5, warmed)
}

func TestCacheWarming_PropagatesStoreError(t *testing.T) {
	svc := services.NewCacheWarmingService(&fakeSearchQueryRepo{err: errStoreDown}, &recordingSuggester{})

	_, err := svc.WarmCache(context.Background())
	assert.ErrorIs(t, err, errStoreDown)
}

func TestCacheWarming_WarmsSuggestionCache(t *testing.T) {
	searches := &fakeSearchQueryRepo{
		popular:  []string{"heater"},
		keywords: []*entities.KeywordStat{{Query: "heater", Count: 3}},
	}
	cache := NewMockCacheProvider()
	suggestions := services.NewSuggestionService(searches, suggestionCatalog(), cache, 30, nil)

	_, err := services.NewCacheWarmingService(searches, suggestions).WarmCache(context.Background())
	require.NoError(t, err)

	assert.True(t, cache.Has("suggest:5:he"))
	assert.True(t, cache.Has("suggest:5:heat"))
}
