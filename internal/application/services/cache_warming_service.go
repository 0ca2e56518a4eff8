package services

import (
	"context"
	"strings"
	"time"

	"github.com/zatekoja/productsearch/internal/domain/repositories"
	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
	"github.com/zatekoja/productsearch/pkg/utils"
)

const (
	warmingComponent     = "cache-warming"
	warmKeywordLimit     = 20
	warmMaxPrefixLength  = 4
	warmSuggestionWindow = 7
)

// CacheWarmingService pre-populates suggestion caches for the prefixes of
// the most searched keywords.
type CacheWarmingService struct {
	searches  repositories.SearchQueryRepository
	suggester Suggester
	now       func() time.Time
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(searches repositories.SearchQueryRepository, suggester Suggester) *CacheWarmingService {
	return &CacheWarmingService{
		searches:  searches,
		suggester: suggester,
		now:       time.Now,
	}
}

// WarmCache requests suggestions for every short prefix of the top keywords
// so the first keystrokes hit the cache. Returns the number of prefixes warmed.
func (s *CacheWarmingService) WarmCache(ctx context.Context) (int, error) {
	since := s.now().AddDate(0, 0, -warmSuggestionWindow)
	keywords, err := s.searches.TopKeywords(ctx, since, warmKeywordLimit)
	if err != nil {
		return 0, err
	}

	logger := observability.ComponentLogger(ctx, warmingComponent)
	seen := make(map[string]struct{})
	warmed := 0
	for _, kw := range keywords {
		for _, prefix := range warmPrefixes(utils.NormalizeQuery(kw.Query)) {
			if _, ok := seen[prefix]; ok {
				continue
			}
			seen[prefix] = struct{}{}
			if ctx.Err() != nil {
				return warmed, ctx.Err()
			}
			if _, err := s.suggester.Suggest(ctx, prefix, defaultSuggestionLimit); err != nil {
				logger.Warn().Err(err).Str("prefix", prefix).Msg("failed to warm suggestions")
				continue
			}
			warmed++
		}
	}

	logger.Debug().Int("prefixes", warmed).Msg("suggestion cache warmed")
	return warmed, nil
}

// StartPeriodicWarming warms once, then again on every interval until ctx
// is cancelled.
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	logger := observability.ComponentLogger(ctx, warmingComponent)
	if _, err := s.WarmCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial cache warming failed")
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Info().Msg("stopping cache warming service")
				return
			case <-ticker.C:
				if _, err := s.WarmCache(ctx); err != nil && ctx.Err() == nil {
					logger.Warn().Err(err).Msg("periodic cache warming failed")
				}
			}
		}
	}()
	logger.Info().Dur("interval", interval).Msg("started periodic cache warming")
}

// warmPrefixes returns the leading 2..4 rune prefixes of query.
func warmPrefixes(query string) []string {
	runes := []rune(query)
	var out []string
	for n := minSuggestionLength; n <= warmMaxPrefixLength && n <= len(runes); n++ {
		prefix := strings.TrimSpace(string(runes[:n]))
		if len([]rune(prefix)) < n {
			continue
		}
		out = append(out, prefix)
	}
	return out
}
