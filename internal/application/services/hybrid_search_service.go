package services

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/productsearch/internal/domain/entities"
	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
	"github.com/zatekoja/productsearch/pkg/config"
)

const (
	semanticScale   = 100.0
	hybridComponent = "hybrid_search"
)

// LexicalSearcher scores products by keyword matching.
type LexicalSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]entities.LexicalMatch, error)
}

// SemanticSearcher scores products by vector similarity.
type SemanticSearcher interface {
	SemanticSearch(ctx context.Context, query string, limit int) ([]entities.SemanticMatch, error)
}

// HybridWeights tunes the lexical and semantic contributions.
type HybridWeights struct {
	Lexical    float64
	Semantic   float64
	ExactBoost float64
}

// DefaultHybridWeights returns 0.6 lexical, 0.4 semantic, 1.5x exact boost.
func DefaultHybridWeights() HybridWeights {
	return HybridWeights{Lexical: 0.6, Semantic: 0.4, ExactBoost: 1.5}
}

// HybridWeightsFromConfig reads weights from the search config.
func HybridWeightsFromConfig(cfg config.SearchConfig) HybridWeights {
	return HybridWeights{
		Lexical:    cfg.LexicalWeight,
		Semantic:   cfg.SemanticWeight,
		ExactBoost: cfg.ExactBoost,
	}
}

// HybridSearchService merges lexical and semantic results into one ranking.
type HybridSearchService struct {
	lexical  LexicalSearcher
	semantic SemanticSearcher
	weights  HybridWeights
	metrics  *observability.Metrics
}

// NewHybridSearchService creates a hybrid ranker.
func NewHybridSearchService(lexical LexicalSearcher, semantic SemanticSearcher, weights HybridWeights, metrics *observability.Metrics) *HybridSearchService {
	return &HybridSearchService{
		lexical:  lexical,
		semantic: semantic,
		weights:  weights,
		metrics:  metrics,
	}
}

// Search runs lexical and semantic search concurrently and merges them. A
// semantic failure degrades to the lexical ranking; a lexical failure is
// returned.
func (s *HybridSearchService) Search(ctx context.Context, query string, limit int) ([]entities.RankedProduct, error) {
	ctx, span := observability.StartSpan(ctx, "search.hybrid")
	defer span.End()

	start := time.Now()
	defer func() { observability.RecordSearchStage(ctx, s.metrics, "hybrid", time.Since(start)) }()

	if limit <= 0 {
		return []entities.RankedProduct{}, nil
	}

	var (
		lexical     []entities.LexicalMatch
		semantic    []entities.SemanticMatch
		semanticErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lexical, err = s.lexical.Search(gctx, query, limit)
		return err
	})
	g.Go(func() error {
		semantic, semanticErr = s.semantic.SemanticSearch(gctx, query, limit)
		return nil
	})
	if err := g.Wait(); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	if semanticErr != nil {
		observability.ComponentLogger(ctx, hybridComponent).Warn().Err(semanticErr).
			Msg("semantic search failed, using lexical ranking")
		observability.RecordSearchFallback(ctx, s.metrics, "hybrid", "lexical")
		semantic = nil
	}

	ranked := MergeHybrid(lexical, semantic, s.weights, limit)
	observability.SetSpanAttributes(span,
		attribute.Int("search.lexical_results", len(lexical)),
		attribute.Int("search.semantic_results", len(semantic)),
		attribute.Int("search.results", len(ranked)),
	)
	return ranked, nil
}

// MergeHybrid combines both result lists into per-product scores and returns
// the top limit by combined score, ties broken by product id. With no
// semantic results the lexical ranking is returned as is.
func MergeHybrid(lexical []entities.LexicalMatch, semantic []entities.SemanticMatch, w HybridWeights, limit int) []entities.RankedProduct {
	if len(semantic) == 0 {
		ranked := make([]entities.RankedProduct, 0, len(lexical))
		for _, m := range lexical {
			ranked = append(ranked, entities.RankedProduct{ProductID: m.ProductID, Score: m.Score})
		}
		return truncateRanked(ranked, limit)
	}

	scores := make(map[string]float64, len(lexical)+len(semantic))
	for _, m := range lexical {
		boost := 1.0
		if m.MatchType == entities.MatchTypeExact {
			boost = w.ExactBoost
		}
		scores[m.ProductID] += m.Score * w.Lexical * boost
	}
	for _, m := range semantic {
		scores[m.ProductID] += m.Similarity * semanticScale * w.Semantic
	}

	ranked := make([]entities.RankedProduct, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, entities.RankedProduct{ProductID: id, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ProductID < ranked[j].ProductID
	})
	return truncateRanked(ranked, limit)
}

func truncateRanked(ranked []entities.RankedProduct, limit int) []entities.RankedProduct {
	if limit > 0 && len(ranked) > limit {
		return ranked[:limit]
	}
	return ranked
}

// ProductIDs extracts ids in rank order.
func ProductIDs(ranked []entities.RankedProduct) []string {
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ProductID
	}
	return ids
}
