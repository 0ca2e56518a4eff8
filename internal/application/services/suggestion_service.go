package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/zatekoja/productsearch/internal/domain/providers"
	"github.com/zatekoja/productsearch/internal/domain/repositories"
	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
	"github.com/zatekoja/productsearch/pkg/utils"
)

const (
	minSuggestionLength    = 2
	defaultSuggestionLimit = 5
	defaultSuggestionDays  = 30
	suggestionCacheTTL     = 5 * time.Minute
	suggestionComponent    = "suggestions"
)

// SuggestionService completes partial queries from the search log and
// product names.
type SuggestionService struct {
	searches   repositories.SearchQueryRepository
	products   repositories.ProductRepository
	cache      providers.CacheProvider
	windowDays int
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewSuggestionService creates a suggestion engine. cache may be nil.
func NewSuggestionService(
	searches repositories.SearchQueryRepository,
	products repositories.ProductRepository,
	cache providers.CacheProvider,
	windowDays int,
	metrics *observability.Metrics,
) *SuggestionService {
	if windowDays <= 0 {
		windowDays = defaultSuggestionDays
	}
	return &SuggestionService{
		searches:   searches,
		products:   products,
		cache:      cache,
		windowDays: windowDays,
		metrics:    metrics,
		now:        time.Now,
	}
}

func suggestionCacheKey(fragment string, limit int) string {
	return fmt.Sprintf("suggest:%d:%s", limit, fragment)
}

// Suggest returns up to limit completions: popular past queries first, then
// product names. Fragments shorter than two characters get none.
func (s *SuggestionService) Suggest(ctx context.Context, partial string, limit int) ([]string, error) {
	fragment := utils.NormalizeQuery(partial)
	if utf8.RuneCountInString(fragment) < minSuggestionLength {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}

	key := suggestionCacheKey(fragment, limit)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil && len(raw) > 0 {
			var cached []string
			if err := json.Unmarshal(raw, &cached); err == nil {
				observability.RecordCacheHit(ctx, s.metrics, "suggestions")
				return cached, nil
			}
		}
		observability.RecordCacheMiss(ctx, s.metrics, "suggestions")
	}

	since := s.now().UTC().AddDate(0, 0, -s.windowDays)
	popular, err := s.searches.PopularQueries(ctx, fragment, since, limit)
	if err != nil {
		return nil, err
	}

	suggestions := make([]string, 0, limit)
	seen := make(map[string]bool, limit)
	add := func(text string) {
		norm := utils.NormalizeQuery(text)
		if norm == "" || seen[norm] || len(suggestions) >= limit {
			return
		}
		seen[norm] = true
		suggestions = append(suggestions, text)
	}
	for _, q := range popular {
		add(q)
	}

	if len(suggestions) < limit {
		names, err := s.products.SearchNames(ctx, fragment, limit)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			add(name)
		}
	}

	if s.cache != nil {
		if raw, err := json.Marshal(suggestions); err == nil {
			if err := s.cache.Set(ctx, key, raw, int(suggestionCacheTTL.Seconds())); err != nil {
				observability.ComponentLogger(ctx, suggestionComponent).Debug().Err(err).Msg("failed to cache suggestions")
			}
		}
	}
	return suggestions, nil
}
