package services

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/productsearch/internal/domain/entities"
	"github.com/zatekoja/productsearch/internal/domain/repositories"
	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/productsearch/pkg/errors"
	"github.com/zatekoja/productsearch/pkg/utils"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100

	// advancedCatalogLimit caps the catalog scan of a query-less advanced
	// search.
	advancedCatalogLimit = 500
	searchComponent      = "search"
)

// PersonalizedSearcher ranks results for a known user.
type PersonalizedSearcher interface {
	Search(ctx context.Context, query, userID string, limit int) ([]entities.RankedProduct, error)
}

// SimilarFinder finds products near a product in embedding space.
type SimilarFinder interface {
	FindSimilar(ctx context.Context, productID string, limit int) ([]entities.SemanticMatch, error)
}

// Suggester completes partial queries.
type Suggester interface {
	Suggest(ctx context.Context, partial string, limit int) ([]string, error)
}

// SearchTracker logs searches.
type SearchTracker interface {
	TrackSearch(ctx context.Context, in SearchInput)
}

// SearchService is the caller-facing search API. Search and suggestions
// never fail; internal errors are logged and produce an empty list.
type SearchService struct {
	hybrid       HybridSearcher
	personalized PersonalizedSearcher
	similar      SimilarFinder
	suggester    Suggester
	products     repositories.ProductRepository
	tracker      SearchTracker
}

// NewSearchService wires the search facade. tracker may be nil.
func NewSearchService(
	hybrid HybridSearcher,
	personalized PersonalizedSearcher,
	similar SimilarFinder,
	suggester Suggester,
	products repositories.ProductRepository,
	tracker SearchTracker,
) *SearchService {
	return &SearchService{
		hybrid:       hybrid,
		personalized: personalized,
		similar:      similar,
		suggester:    suggester,
		products:     products,
		tracker:      tracker,
	}
}

// ClampLimit applies the default and upper bound to a requested limit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		return MaxSearchLimit
	}
	return limit
}

// Search returns ranked product ids for the query, personalized when a user
// id is given. Searches with a session id are logged.
func (s *SearchService) Search(ctx context.Context, req entities.SearchRequest) []string {
	ctx, span := observability.StartSpan(ctx, "search")
	defer span.End()

	if utils.NormalizeQuery(req.Query) == "" {
		return []string{}
	}
	limit := ClampLimit(req.Limit)

	var (
		ranked []entities.RankedProduct
		err    error
	)
	if req.UserID != "" && s.personalized != nil {
		ranked, err = s.personalized.Search(ctx, req.Query, req.UserID, limit)
	} else {
		ranked, err = s.hybrid.Search(ctx, req.Query, limit)
	}
	if err != nil {
		observability.RecordError(span, err)
		observability.ComponentLogger(ctx, searchComponent).Warn().Err(err).
			Str("query", req.Query).Msg("search failed, returning no results")
		ranked = nil
	}

	ids := ProductIDs(ranked)
	observability.SetSpanAttributes(span,
		attribute.Int("search.limit", limit),
		attribute.Int("search.results", len(ids)),
		attribute.Bool("search.personalized", req.UserID != ""),
	)

	if s.tracker != nil && req.SessionID != "" {
		s.tracker.TrackSearch(ctx, SearchInput{
			UserID:       req.UserID,
			SessionID:    req.SessionID,
			Query:        req.Query,
			ResultsCount: len(ids),
		})
	}
	return ids
}

// AdvancedSearch filters and sorts products. With a query, candidates come
// from the hybrid ranker at twice the limit; otherwise from the catalog.
func (s *SearchService) AdvancedSearch(ctx context.Context, req entities.AdvancedSearchRequest) ([]*entities.Product, error) {
	ctx, span := observability.StartSpan(ctx, "search.advanced")
	defer span.End()

	limit := ClampLimit(req.Limit)

	var candidates []*entities.Product
	if utils.NormalizeQuery(req.Query) != "" {
		ranked, err := s.hybrid.Search(ctx, req.Query, limit*2)
		if err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
		candidates, err = s.productsInOrder(ctx, ProductIDs(ranked))
		if err != nil {
			return nil, err
		}
	} else {
		filter := req.Filter
		filter.Limit = advancedCatalogLimit
		var err error
		candidates, err = s.products.List(ctx, filter)
		if err != nil {
			return nil, err
		}
	}

	results := make([]*entities.Product, 0, len(candidates))
	for _, p := range candidates {
		if req.Filter.Matches(p) {
			results = append(results, p)
		}
	}

	SortProducts(results, req.Sort)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *SearchService) productsInOrder(ctx context.Context, ids []string) ([]*entities.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*entities.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	ordered := make([]*entities.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

// SortProducts orders products in place. Relevance keeps the current order.
func SortProducts(products []*entities.Product, order entities.SortOrder) {
	var less func(a, b *entities.Product) bool
	switch order {
	case entities.SortPriceAsc:
		less = func(a, b *entities.Product) bool { return a.Price < b.Price }
	case entities.SortPriceDesc:
		less = func(a, b *entities.Product) bool { return a.Price > b.Price }
	case entities.SortRating:
		less = func(a, b *entities.Product) bool { return a.Rating > b.Rating }
	case entities.SortNewest:
		less = func(a, b *entities.Product) bool { return a.CreatedAt.After(b.CreatedAt) }
	default:
		return
	}
	sort.SliceStable(products, func(i, j int) bool { return less(products[i], products[j]) })
}

// Suggestions returns query completions, or none on failure.
func (s *SearchService) Suggestions(ctx context.Context, partial string, limit int) []string {
	suggestions, err := s.suggester.Suggest(ctx, partial, limit)
	if err != nil {
		observability.ComponentLogger(ctx, searchComponent).Warn().Err(err).Msg("suggestions failed")
		return []string{}
	}
	return suggestions
}

// SimilarProducts returns ids of the products most similar to productID. An
// unknown product is a not-found error; provider failures yield no results.
func (s *SearchService) SimilarProducts(ctx context.Context, productID string, limit int) ([]string, error) {
	if productID == "" {
		return nil, apperrors.NewValidationError("product id is required")
	}
	matches, err := s.similar.FindSimilar(ctx, productID, ClampLimit(limit))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, err
		}
		observability.ComponentLogger(ctx, searchComponent).Warn().Err(err).
			Str("product_id", productID).Msg("similar products unavailable")
		return []string{}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ProductID
	}
	return ids, nil
}
