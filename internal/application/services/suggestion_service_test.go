package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/productsearch/internal/application/services"
	"github.com/zatekoja/productsearch/internal/domain/entities"
)

func suggestionCatalog() *fakeProductRepo {
	return newFakeProductRepo(
		&entities.Product{ID: "p1", Name: "Filter sponge"},
		&entities.Product{ID: "p2", Name: "Canister filter"},
		&entities.Product{ID: "p3", Name: "Heater 100W"},
	)
}

func TestSuggest_ShortFragmentReturnsNothing(t *testing.T) {
	svc := services.NewSuggestionService(&fakeSearchQueryRepo{popular: []string{"filter"}}, suggestionCatalog(), nil, 30, nil)

	for _, q := range []string{"", " ", "f", "ـفـ"} {
		got, err := svc.Suggest(context.Background(), q, 5)
		require.NoError(t, err)
		assert.Empty(t, got, "fragment %q", q)
	}
}

func TestSuggest_PopularFirstThenProductNames(t *testing.T) {
	searches := &fakeSearchQueryRepo{popular: []string{"filter media", "canister filter", "heater"}}
	svc := services.NewSuggestionService(searches, suggestionCatalog(), nil, 30, nil)

	got, err := svc.Suggest(context.Background(), "Filter", 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"filter media", "canister filter", "Filter sponge"}, got)
}

func TestSuggest_StopsAtLimit(t *testing.T) {
	searches := &fakeSearchQueryRepo{popular: []string{"filter a", "filter b", "filter c"}}
	products := suggestionCatalog()
	products.err = errStoreDown
	svc := services.NewSuggestionService(searches, products, nil, 30, nil)

	got, err := svc.Suggest(context.Background(), "filter", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"filter a", "filter b"}, got)
}

func TestSuggest_UsesCache(t *testing.T) {
	searches := &fakeSearchQueryRepo{popular: []string{"heater"}}
	cache := NewMockCacheProvider()
	svc := services.NewSuggestionService(searches, suggestionCatalog(), cache, 30, nil)
	ctx := context.Background()

	first, err := svc.Suggest(ctx, "heat", 5)
	require.NoError(t, err)

	searches.popular = nil
	second, err := svc.Suggest(ctx, "heat", 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.sets)
}

func TestSuggest_StoreErrorIsReturned(t *testing.T) {
	svc := services.NewSuggestionService(&fakeSearchQueryRepo{err: errStoreDown}, suggestionCatalog(), nil, 30, nil)
	_, err := svc.Suggest(context.Background(), "filter", 5)
	assert.ErrorIs(t, err, errStoreDown)
}
