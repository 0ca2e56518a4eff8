package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/productsearch/internal/domain/entities"
	"github.com/zatekoja/productsearch/internal/domain/repositories"
	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
	"github.com/zatekoja/productsearch/pkg/utils"
)

// Field weights for lexical scoring.
const (
	scoreExactName   = 20.0
	scoreWordName    = 10.0
	scoreWordDesc    = 5.0
	scoreCategory    = 8.0
	scoreBrand       = 7.0
	scoreInStock     = 2.0
	candidateFanout  = 2
	lexicalComponent = "lexical_search"
)

// LexicalSearchService scores catalog products against a query by weighted
// substring matching over name, description, category and brand.
type LexicalSearchService struct {
	products repositories.ProductRepository
	index    repositories.ProductSearchIndex
	metrics  *observability.Metrics
}

// NewLexicalSearchService creates a lexical scorer. When index is nil the
// candidate pre-filter runs in the product store.
func NewLexicalSearchService(products repositories.ProductRepository, index repositories.ProductSearchIndex, metrics *observability.Metrics) *LexicalSearchService {
	return &LexicalSearchService{
		products: products,
		index:    index,
		metrics:  metrics,
	}
}

// Search returns up to limit matches ordered by score descending, then by
// product id.
func (s *LexicalSearchService) Search(ctx context.Context, query string, limit int) ([]entities.LexicalMatch, error) {
	ctx, span := observability.StartSpan(ctx, "search.lexical")
	defer span.End()

	start := time.Now()
	defer func() { observability.RecordSearchStage(ctx, s.metrics, "lexical", time.Since(start)) }()

	normalized := utils.NormalizeQuery(query)
	words := utils.QueryWords(normalized)
	if len(words) == 0 || limit <= 0 {
		return []entities.LexicalMatch{}, nil
	}

	candidates, err := s.candidates(ctx, words, limit*candidateFanout)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	matches := ScoreLexical(normalized, words, candidates)
	if len(matches) > limit {
		matches = matches[:limit]
	}

	observability.SetSpanAttributes(span,
		attribute.Int("search.candidates", len(candidates)),
		attribute.Int("search.results", len(matches)),
	)
	return matches, nil
}

func (s *LexicalSearchService) candidates(ctx context.Context, words []string, limit int) ([]*entities.Product, error) {
	if s.index == nil {
		return s.findCandidates(ctx, words, limit)
	}

	ids, err := s.index.Candidates(ctx, words, limit)
	if err != nil {
		observability.ComponentLogger(ctx, lexicalComponent).Warn().Err(err).
			Msg("search index unavailable, using store pre-filter")
		observability.RecordSearchFallback(ctx, s.metrics, "typesense", "postgres")
		return s.findCandidates(ctx, words, limit)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	start := time.Now()
	products, err := s.products.GetByIDs(ctx, ids)
	observability.RecordDBMetric(ctx, s.metrics, "get_products_by_ids", time.Since(start))
	return products, err
}

func (s *LexicalSearchService) findCandidates(ctx context.Context, words []string, limit int) ([]*entities.Product, error) {
	start := time.Now()
	products, err := s.products.FindCandidates(ctx, words, limit)
	observability.RecordDBMetric(ctx, s.metrics, "find_candidates", time.Since(start))
	return products, err
}

// ScoreLexical scores products against a normalized query and its words.
// Products scoring zero are dropped.
func ScoreLexical(normalized string, words []string, products []*entities.Product) []entities.LexicalMatch {
	matches := make([]entities.LexicalMatch, 0, len(products))
	if normalized == "" {
		return matches
	}

	for _, p := range products {
		if p == nil {
			continue
		}
		score, matchType := scoreProduct(p, normalized, words)
		if score <= 0 {
			continue
		}
		matches = append(matches, entities.LexicalMatch{
			ProductID: p.ID,
			Score:     score,
			MatchType: matchType,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ProductID < matches[j].ProductID
	})
	return matches
}

func scoreProduct(p *entities.Product, normalized string, words []string) (float64, entities.MatchType) {
	name := utils.NormalizeQuery(p.Name)
	desc := utils.NormalizeQuery(p.Description)
	category := utils.NormalizeQuery(p.Category)
	brand := utils.NormalizeQuery(p.Brand)

	score := 0.0
	matchType := entities.MatchTypePartial

	if strings.Contains(name, normalized) {
		score += scoreExactName
		matchType = entities.MatchTypeExact
	}
	for _, w := range words {
		if strings.Contains(name, w) {
			score += scoreWordName
		}
		if strings.Contains(desc, w) {
			score += scoreWordDesc
		}
	}
	if strings.Contains(category, normalized) {
		score += scoreCategory
		if matchType == entities.MatchTypePartial {
			matchType = entities.MatchTypeCategory
		}
	}
	if brand != "" && strings.Contains(brand, normalized) {
		score += scoreBrand
	}

	score += p.Rating
	if p.InStock() {
		score += scoreInStock
	}
	return score, matchType
}
