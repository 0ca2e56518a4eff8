package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/productsearch/internal/application/services"
	"github.com/zatekoja/productsearch/internal/domain/entities"
)

func TestAbandonmentRate(t *testing.T) {
	assert.Equal(t, 70.0, services.AbandonmentRate(10, 3))
	assert.Equal(t, 0.0, services.AbandonmentRate(0, 0))
	assert.Equal(t, 0.0, services.AbandonmentRate(0, 4))
	assert.Equal(t, 0.0, services.AbandonmentRate(3, 5))
	assert.Equal(t, 100.0, services.AbandonmentRate(2, 0))
}

func TestCartAbandonmentRate_FromStore(t *testing.T) {
	interactions := &fakeInteractionRepo{counts: entities.InteractionCounts{CartAdds: 10, Purchases: 3}}
	svc := services.NewAnalyticsService(interactions, &fakeSearchQueryRepo{})

	rate, err := svc.CartAbandonmentRate(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 70.0, rate)
}

func TestCartAbandonmentRate_StoreError(t *testing.T) {
	svc := services.NewAnalyticsService(&fakeInteractionRepo{err: errStoreDown}, &fakeSearchQueryRepo{})
	_, err := svc.CartAbandonmentRate(context.Background(), 0)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestTrendingProducts_CountsViews(t *testing.T) {
	interactions := &fakeInteractionRepo{}
	addInteractions(interactions, "u1", "p1", entities.InteractionView, 3)
	addInteractions(interactions, "u2", "p2", entities.InteractionView, 5)
	addInteractions(interactions, "u2", "p3", entities.InteractionPurchase, 9)
	svc := services.NewAnalyticsService(interactions, &fakeSearchQueryRepo{})

	trending, err := svc.TrendingProducts(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, trending, 2)
	assert.Equal(t, "p2", trending[0].ProductID)
	assert.Equal(t, 5, trending[0].Views)
	assert.Equal(t, "p1", trending[1].ProductID)
}

func TestReports_EmptyDataIsNotAnError(t *testing.T) {
	svc := services.NewAnalyticsService(&fakeInteractionRepo{}, &fakeSearchQueryRepo{})
	ctx := context.Background()

	trending, err := svc.TrendingProducts(ctx, 7, 10)
	require.NoError(t, err)
	assert.NotNil(t, trending)
	assert.Empty(t, trending)

	keywords, err := svc.TopSearchKeywords(ctx, 30, 10)
	require.NoError(t, err)
	assert.NotNil(t, keywords)

	noResults, err := svc.NoResultSearches(ctx, 30, 10)
	require.NoError(t, err)
	assert.NotNil(t, noResults)

	summary, err := svc.UserInteractionSummary(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0.0, summary.ConversionRate)
	assert.Equal(t, []string{}, summary.RecentProducts)
}

func TestTopSearchKeywords_PassesThrough(t *testing.T) {
	searches := &fakeSearchQueryRepo{keywords: []*entities.KeywordStat{{Query: "filter", Count: 12, AvgResults: 7.5}}}
	svc := services.NewAnalyticsService(&fakeInteractionRepo{}, searches)

	keywords, err := svc.TopSearchKeywords(context.Background(), 30, 10)
	require.NoError(t, err)
	require.Len(t, keywords, 1)
	assert.Equal(t, 7.5, keywords[0].AvgResults)
}

func TestSummarizeInteractions(t *testing.T) {
	now := time.Now()
	history := []*entities.ProductInteraction{
		{ProductID: "p3", Type: entities.InteractionPurchase, CreatedAt: now},
		{ProductID: "p3", Type: entities.InteractionView, Duration: intPtr(30), CreatedAt: now.Add(-time.Minute)},
		{ProductID: "p2", Type: entities.InteractionView, Duration: intPtr(0), CreatedAt: now.Add(-2 * time.Minute)},
		{ProductID: "p3", Type: entities.InteractionView, Duration: intPtr(10), CreatedAt: now.Add(-3 * time.Minute)},
		{ProductID: "p1", Type: entities.InteractionView, CreatedAt: now.Add(-4 * time.Minute)},
		{ProductID: "p1", Type: entities.InteractionCartAdd, CreatedAt: now.Add(-5 * time.Minute)},
		{ProductID: "p1", Type: entities.InteractionFavorite, CreatedAt: now.Add(-6 * time.Minute)},
	}

	summary := services.SummarizeInteractions("u1", history)
	assert.Equal(t, "u1", summary.UserID)
	assert.Equal(t, 4, summary.TotalViews)
	assert.Equal(t, 1, summary.TotalCartAdds)
	assert.Equal(t, 1, summary.TotalPurchases)
	assert.Equal(t, 1, summary.TotalFavorites)
	assert.Equal(t, 25.0, summary.ConversionRate)
	assert.Equal(t, 20.0, summary.AverageViewDuration)
	assert.Equal(t, []string{"p3", "p2", "p1"}, summary.RecentProducts)
}

func TestSummarizeInteractions_RecentProductsCapped(t *testing.T) {
	var history []*entities.ProductInteraction
	for i := 0; i < 15; i++ {
		history = append(history, &entities.ProductInteraction{
			ProductID: string(rune('a' + i)),
			Type:      entities.InteractionView,
		})
	}
	summary := services.SummarizeInteractions("u1", history)
	assert.Len(t, summary.RecentProducts, 10)
	assert.Equal(t, "a", summary.RecentProducts[0])
}
