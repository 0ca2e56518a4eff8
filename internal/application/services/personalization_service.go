package services

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/zatekoja/productsearch/internal/domain/entities"
	"github.com/zatekoja/productsearch/internal/domain/providers"
	"github.com/zatekoja/productsearch/internal/domain/repositories"
	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
)

const (
	favoriteCategoryBoost  = 5.0
	purchasedPenalty       = 10.0
	defaultHistorySize     = 50
	personalizeComponent   = "personalization"
	profileCacheKeyPrefix  = "personalization:profile:"
	defaultProfileCacheTTL = 10 * time.Minute
)

// HybridSearcher produces the candidate ranking to personalize.
type HybridSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]entities.RankedProduct, error)
}

// UserProfile is the behavioral summary the re-ranker uses.
type UserProfile struct {
	FavoriteCategories map[string]int  `json:"favorite_categories"`
	Purchased          map[string]bool `json:"purchased"`
}

// Empty reports whether the profile carries no signal.
func (p *UserProfile) Empty() bool {
	return p == nil || (len(p.FavoriteCategories) == 0 && len(p.Purchased) == 0)
}

// ProfileCacheKey is the cache key of a user's profile.
func ProfileCacheKey(userID string) string {
	return profileCacheKeyPrefix + userID
}

// PersonalizationService re-ranks hybrid results with a user's recent
// interactions.
type PersonalizationService struct {
	hybrid       HybridSearcher
	interactions repositories.InteractionRepository
	products     repositories.ProductRepository
	cache        providers.CacheProvider
	historySize  int
	profileTTL   time.Duration
	metrics      *observability.Metrics
}

// NewPersonalizationService creates the re-ranker. cache may be nil.
func NewPersonalizationService(
	hybrid HybridSearcher,
	interactions repositories.InteractionRepository,
	products repositories.ProductRepository,
	cache providers.CacheProvider,
	historySize int,
	profileTTL time.Duration,
	metrics *observability.Metrics,
) *PersonalizationService {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	if profileTTL <= 0 {
		profileTTL = defaultProfileCacheTTL
	}
	return &PersonalizationService{
		hybrid:       hybrid,
		interactions: interactions,
		products:     products,
		cache:        cache,
		historySize:  historySize,
		profileTTL:   profileTTL,
		metrics:      metrics,
	}
}

// Search fetches twice the limit from the hybrid ranker and re-ranks it for
// userID. Any personalization failure returns the hybrid order.
func (s *PersonalizationService) Search(ctx context.Context, query, userID string, limit int) ([]entities.RankedProduct, error) {
	ctx, span := observability.StartSpan(ctx, "search.personalized")
	defer span.End()

	candidates, err := s.hybrid.Search(ctx, query, limit*2)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if userID == "" {
		return truncateRanked(candidates, limit), nil
	}

	start := time.Now()
	reranked, err := s.Rerank(ctx, userID, candidates)
	observability.RecordSearchStage(ctx, s.metrics, "personalize", time.Since(start))
	if err != nil {
		observability.ComponentLogger(ctx, personalizeComponent).Warn().Err(err).
			Str("user_id", userID).Msg("personalization failed, using hybrid order")
		observability.RecordSearchFallback(ctx, s.metrics, "personalized", "hybrid")
		return truncateRanked(candidates, limit), nil
	}
	return truncateRanked(reranked, limit), nil
}

// Rerank scores each candidate from its position, adds a boost for favorite
// categories and the product rating, and demotes purchased products. Equal
// scores keep their incoming order. With no history the candidates are
// returned unchanged.
func (s *PersonalizationService) Rerank(ctx context.Context, userID string, candidates []entities.RankedProduct) ([]entities.RankedProduct, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return candidates, err
	}
	if profile.Empty() {
		return candidates, nil
	}

	products, err := s.products.GetByIDs(ctx, ProductIDs(candidates))
	if err != nil {
		return candidates, err
	}
	byID := make(map[string]*entities.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	n := len(candidates)
	reranked := make([]entities.RankedProduct, n)
	for i, c := range candidates {
		score := float64(n - i)
		if p, ok := byID[c.ProductID]; ok {
			if profile.FavoriteCategories[p.Category] > 0 {
				score += favoriteCategoryBoost
			}
			score += p.Rating
		}
		if profile.Purchased[c.ProductID] {
			score -= purchasedPenalty
		}
		reranked[i] = entities.RankedProduct{ProductID: c.ProductID, Score: score}
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})
	return reranked, nil
}

// Profile returns the user's profile, from cache when available.
func (s *PersonalizationService) Profile(ctx context.Context, userID string) (*UserProfile, error) {
	key := ProfileCacheKey(userID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil && len(raw) > 0 {
			var profile UserProfile
			if err := json.Unmarshal(raw, &profile); err == nil {
				observability.RecordCacheHit(ctx, s.metrics, "personalization")
				return &profile, nil
			}
		}
		observability.RecordCacheMiss(ctx, s.metrics, "personalization")
	}

	profile, err := s.buildProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(profile); err == nil {
			if err := s.cache.Set(ctx, key, raw, int(s.profileTTL.Seconds())); err != nil {
				observability.ComponentLogger(ctx, personalizeComponent).Debug().Err(err).Msg("failed to cache profile")
			}
		}
	}
	return profile, nil
}

func (s *PersonalizationService) buildProfile(ctx context.Context, userID string) (*UserProfile, error) {
	history, err := s.interactions.ListRecentByUser(ctx, userID, s.historySize)
	if err != nil {
		return nil, err
	}

	profile := &UserProfile{
		FavoriteCategories: make(map[string]int),
		Purchased:          make(map[string]bool),
	}
	if len(history) == 0 {
		return profile, nil
	}

	ids := make([]string, 0, len(history))
	seen := make(map[string]bool, len(history))
	for _, i := range history {
		if i.Type == entities.InteractionPurchase {
			profile.Purchased[i.ProductID] = true
		}
		if !seen[i.ProductID] {
			seen[i.ProductID] = true
			ids = append(ids, i.ProductID)
		}
	}

	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	category := make(map[string]string, len(products))
	for _, p := range products {
		category[p.ID] = p.Category
	}
	for _, i := range history {
		if c := category[i.ProductID]; c != "" {
			profile.FavoriteCategories[c]++
		}
	}
	return profile, nil
}
