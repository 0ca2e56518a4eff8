package services

import (
	"context"
	"time"

	"github.com/zatekoja/productsearch/internal/domain/entities"
	"github.com/zatekoja/productsearch/internal/domain/repositories"
)

const (
	defaultTrendingDays   = 7
	defaultTrendingLimit  = 10
	defaultReportDays     = 30
	defaultKeywordLimit   = 10
	defaultNoResultLimit  = 20
	summaryHistorySize    = 100
	summaryRecentProducts = 10
	percent               = 100.0
)

// AnalyticsService serves aggregate reports over interactions and searches.
type AnalyticsService struct {
	interactions repositories.InteractionRepository
	searches     repositories.SearchQueryRepository
	now          func() time.Time
}

// NewAnalyticsService creates a new analytics service.
func NewAnalyticsService(interactions repositories.InteractionRepository, searches repositories.SearchQueryRepository) *AnalyticsService {
	return &AnalyticsService{
		interactions: interactions,
		searches:     searches,
		now:          time.Now,
	}
}

func (s *AnalyticsService) since(days, fallback int) time.Time {
	if days <= 0 {
		days = fallback
	}
	return s.now().UTC().AddDate(0, 0, -days)
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// TrendingProducts ranks products by views over the last days.
func (s *AnalyticsService) TrendingProducts(ctx context.Context, days, limit int) ([]*entities.TrendingProduct, error) {
	trending, err := s.interactions.TrendingProducts(ctx, s.since(days, defaultTrendingDays), orDefault(limit, defaultTrendingLimit))
	if err != nil {
		return nil, err
	}
	if trending == nil {
		trending = []*entities.TrendingProduct{}
	}
	return trending, nil
}

// CartAbandonmentRate is the share of cart adds not matched by a purchase,
// as a percentage floored at zero.
func (s *AnalyticsService) CartAbandonmentRate(ctx context.Context, days int) (float64, error) {
	counts, err := s.interactions.CountCartActivity(ctx, s.since(days, defaultReportDays))
	if err != nil {
		return 0, err
	}
	return AbandonmentRate(counts.CartAdds, counts.Purchases), nil
}

// AbandonmentRate computes (adds - purchases) / adds * 100, or 0 without adds.
func AbandonmentRate(cartAdds, purchases int) float64 {
	if cartAdds <= 0 {
		return 0
	}
	rate := float64(cartAdds-purchases) / float64(cartAdds) * percent
	if rate < 0 {
		return 0
	}
	return rate
}

// TopSearchKeywords returns the most frequent queries.
func (s *AnalyticsService) TopSearchKeywords(ctx context.Context, days, limit int) ([]*entities.KeywordStat, error) {
	stats, err := s.searches.TopKeywords(ctx, s.since(days, defaultReportDays), orDefault(limit, defaultKeywordLimit))
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []*entities.KeywordStat{}
	}
	return stats, nil
}

// NoResultSearches returns the most frequent queries that found nothing.
func (s *AnalyticsService) NoResultSearches(ctx context.Context, days, limit int) ([]*entities.NoResultQuery, error) {
	queries, err := s.searches.NoResultQueries(ctx, s.since(days, defaultReportDays), orDefault(limit, defaultNoResultLimit))
	if err != nil {
		return nil, err
	}
	if queries == nil {
		queries = []*entities.NoResultQuery{}
	}
	return queries, nil
}

// UserInteractionSummary summarizes the user's last 100 interactions.
func (s *AnalyticsService) UserInteractionSummary(ctx context.Context, userID string) (*entities.UserInteractionSummary, error) {
	history, err := s.interactions.ListRecentByUser(ctx, userID, summaryHistorySize)
	if err != nil {
		return nil, err
	}
	return SummarizeInteractions(userID, history), nil
}

// SummarizeInteractions builds a summary from interactions ordered newest
// first.
func SummarizeInteractions(userID string, history []*entities.ProductInteraction) *entities.UserInteractionSummary {
	summary := &entities.UserInteractionSummary{
		UserID:         userID,
		RecentProducts: []string{},
	}

	var (
		durationTotal int
		durationCount int
		seen          = make(map[string]bool)
	)
	for _, i := range history {
		switch i.Type {
		case entities.InteractionView:
			summary.TotalViews++
			if i.Duration != nil && *i.Duration > 0 {
				durationTotal += *i.Duration
				durationCount++
			}
			if !seen[i.ProductID] && len(summary.RecentProducts) < summaryRecentProducts {
				seen[i.ProductID] = true
				summary.RecentProducts = append(summary.RecentProducts, i.ProductID)
			}
		case entities.InteractionCartAdd:
			summary.TotalCartAdds++
		case entities.InteractionPurchase:
			summary.TotalPurchases++
		case entities.InteractionFavorite:
			summary.TotalFavorites++
		}
	}

	if summary.TotalViews > 0 {
		summary.ConversionRate = float64(summary.TotalPurchases) / float64(summary.TotalViews) * percent
	}
	if durationCount > 0 {
		summary.AverageViewDuration = float64(durationTotal) / float64(durationCount)
	}
	return summary
}
