package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/productsearch/internal/application/services"
	"github.com/zatekoja/productsearch/internal/domain/entities"
)

type stubHybrid struct {
	ranked    []entities.RankedProduct
	err       error
	lastLimit int
}

func (s *stubHybrid) Search(ctx context.Context, query string, limit int) ([]entities.RankedProduct, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	out := append([]entities.RankedProduct(nil), s.ranked...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func ranked(ids ...string) []entities.RankedProduct {
	out := make([]entities.RankedProduct, len(ids))
	for i, id := range ids {
		out[i] = entities.RankedProduct{ProductID: id, Score: float64(len(ids) - i)}
	}
	return out
}

func personalizationCatalog() *fakeProductRepo {
	return newFakeProductRepo(
		&entities.Product{ID: "filter-seen", Name: "Sponge filter", Category: "Filters", Rating: 4},
		&entities.Product{ID: "filter-new", Name: "Canister filter", Category: "Filters", Rating: 4},
		&entities.Product{ID: "light-1", Name: "LED bar", Category: "Lighting", Rating: 4},
		&entities.Product{ID: "light-2", Name: "LED panel", Category: "Lighting", Rating: 4},
	)
}

func addInteractions(repo *fakeInteractionRepo, userID, productID string, typ entities.InteractionType, n int) {
	for i := 0; i < n; i++ {
		_ = repo.Create(context.Background(), &entities.ProductInteraction{
			ID:        fmt.Sprintf("%s-%s-%d", productID, typ, i),
			UserID:    userID,
			SessionID: "sess",
			ProductID: productID,
			Type:      typ,
			CreatedAt: time.Now(),
		})
	}
}

func TestRerank_NoHistoryKeepsOrder(t *testing.T) {
	svc := services.NewPersonalizationService(&stubHybrid{}, &fakeInteractionRepo{}, personalizationCatalog(), nil, 50, 0, nil)

	candidates := ranked("light-1", "filter-new", "light-2")
	result, err := svc.Rerank(context.Background(), "new-user", candidates)
	require.NoError(t, err)
	assert.Equal(t, candidates, result)
}

func TestRerank_FavoriteCategoryRanksFirst(t *testing.T) {
	interactions := &fakeInteractionRepo{}
	addInteractions(interactions, "u1", "filter-seen", entities.InteractionView, 10)
	svc := services.NewPersonalizationService(&stubHybrid{}, interactions, personalizationCatalog(), nil, 50, 0, nil)

	result, err := svc.Rerank(context.Background(), "u1", ranked("light-1", "filter-new", "light-2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"filter-new", "light-1", "light-2"}, services.ProductIDs(result))
}

func TestRerank_PurchasedProductIsDemoted(t *testing.T) {
	interactions := &fakeInteractionRepo{}
	addInteractions(interactions, "u1", "light-1", entities.InteractionPurchase, 1)
	svc := services.NewPersonalizationService(&stubHybrid{}, interactions, personalizationCatalog(), nil, 50, 0, nil)

	result, err := svc.Rerank(context.Background(), "u1", ranked("light-1", "light-2"))
	require.NoError(t, err)
	ids := services.ProductIDs(result)
	assert.Equal(t, []string{"light-2", "light-1"}, ids)
	assert.Contains(t, ids, "light-1")
}

func TestRerank_StoreFailureReturnsCandidates(t *testing.T) {
	interactions := &fakeInteractionRepo{err: errStoreDown}
	svc := services.NewPersonalizationService(&stubHybrid{}, interactions, personalizationCatalog(), nil, 50, 0, nil)

	candidates := ranked("light-1", "filter-new")
	result, err := svc.Rerank(context.Background(), "u1", candidates)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, candidates, result)
}

func TestPersonalizedSearch_FetchesDoubleAndTrims(t *testing.T) {
	interactions := &fakeInteractionRepo{}
	addInteractions(interactions, "u1", "filter-seen", entities.InteractionFavorite, 2)
	hybrid := &stubHybrid{ranked: ranked("light-1", "light-2", "filter-new", "filter-seen")}
	svc := services.NewPersonalizationService(hybrid, interactions, personalizationCatalog(), nil, 50, 0, nil)

	result, err := svc.Search(context.Background(), "led", "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, 4, hybrid.lastLimit)
	assert.Equal(t, []string{"filter-new", "filter-seen"}, services.ProductIDs(result))
}

func TestPersonalizedSearch_FallsBackToHybridOrder(t *testing.T) {
	hybrid := &stubHybrid{ranked: ranked("light-1", "filter-new", "light-2")}
	svc := services.NewPersonalizationService(hybrid, &fakeInteractionRepo{err: errStoreDown}, personalizationCatalog(), nil, 50, 0, nil)

	result, err := svc.Search(context.Background(), "led", "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"light-1", "filter-new"}, services.ProductIDs(result))
}

func TestPersonalizedSearch_AnonymousSkipsProfile(t *testing.T) {
	interactions := &fakeInteractionRepo{}
	hybrid := &stubHybrid{ranked: ranked("a", "b", "c")}
	svc := services.NewPersonalizationService(hybrid, interactions, personalizationCatalog(), nil, 50, 0, nil)

	result, err := svc.Search(context.Background(), "q", "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, services.ProductIDs(result))
	assert.Equal(t, 0, interactions.listCalls)
}

func TestProfile_IsCached(t *testing.T) {
	interactions := &fakeInteractionRepo{}
	addInteractions(interactions, "u1", "filter-seen", entities.InteractionView, 3)
	addInteractions(interactions, "u1", "light-1", entities.InteractionPurchase, 1)
	cache := NewMockCacheProvider()
	svc := services.NewPersonalizationService(&stubHybrid{}, interactions, personalizationCatalog(), cache, 50, time.Minute, nil)

	first, err := svc.Profile(context.Background(), "u1")
	require.NoError(t, err)
	second, err := svc.Profile(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 1, interactions.listCalls)
	assert.True(t, cache.Has(services.ProfileCacheKey("u1")))
	assert.Equal(t, first, second)
	assert.Equal(t, 3, second.FavoriteCategories["Filters"])
	assert.Equal(t, 1, second.FavoriteCategories["Lighting"])
	assert.True(t, second.Purchased["light-1"])
}
