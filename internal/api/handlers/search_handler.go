package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/zatekoja/productsearch/internal/domain/entities"
	apperrors "github.com/zatekoja/productsearch/pkg/errors"
)

// SearchFacade defines the search operations used by the handler.
type SearchFacade interface {
	Search(ctx context.Context, req entities.SearchRequest) []string
	AdvancedSearch(ctx context.Context, req entities.AdvancedSearchRequest) ([]*entities.Product, error)
	Suggestions(ctx context.Context, partial string, limit int) []string
	SimilarProducts(ctx context.Context, productID string, limit int) ([]string, error)
}

// SearchHandler handles product search HTTP requests
type SearchHandler struct {
	search SearchFacade
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(search SearchFacade) *SearchHandler {
	return &SearchHandler{search: search}
}

// Search handles GET /api/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ids := h.search.Search(r.Context(), entities.SearchRequest{
		Query:     q.Get("q"),
		Limit:     queryInt(r, "limit"),
		UserID:    strings.TrimSpace(q.Get("user_id")),
		SessionID: strings.TrimSpace(q.Get("session_id")),
	})

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"product_ids": ids,
		"count":       len(ids),
	})
}

// AdvancedSearch handles GET /api/search/advanced
func (h *SearchHandler) AdvancedSearch(w http.ResponseWriter, r *http.Request) {
	req, err := parseAdvancedSearch(r)
	if err != nil {
		respondWithAppError(w, r, err, "invalid search parameters")
		return
	}

	products, err := h.search.AdvancedSearch(r.Context(), req)
	if err != nil {
		respondWithAppError(w, r, err, "advanced search failed")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"count":    len(products),
	})
}

func parseAdvancedSearch(r *http.Request) (entities.AdvancedSearchRequest, error) {
	q := r.URL.Query()
	req := entities.AdvancedSearchRequest{
		Query: q.Get("q"),
		Limit: queryInt(r, "limit"),
		Filter: entities.ProductFilter{
			Category: strings.TrimSpace(q.Get("category")),
			InStock:  queryBool(r, "in_stock"),
		},
		Sort: entities.SortRelevance,
	}

	var err error
	if req.Filter.MinPrice, err = queryFloat(r, "min_price"); err != nil {
		return req, err
	}
	if req.Filter.MaxPrice, err = queryFloat(r, "max_price"); err != nil {
		return req, err
	}
	if req.Filter.MinRating, err = queryFloat(r, "min_rating"); err != nil {
		return req, err
	}
	if req.Filter.MinPrice != nil && req.Filter.MaxPrice != nil && *req.Filter.MinPrice > *req.Filter.MaxPrice {
		return req, apperrors.NewValidationError("min_price must not exceed max_price")
	}

	if sort := q.Get("sort"); sort != "" {
		switch order := entities.SortOrder(sort); order {
		case entities.SortRelevance, entities.SortPriceAsc, entities.SortPriceDesc, entities.SortRating, entities.SortNewest:
			req.Sort = order
		default:
			return req, apperrors.NewValidationError("unknown sort " + sort)
		}
	}
	return req, nil
}

// Suggestions handles GET /api/search/suggestions
func (h *SearchHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	suggestions := h.search.Suggestions(r.Context(), r.URL.Query().Get("q"), queryInt(r, "limit"))
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
	})
}

// SimilarProducts handles GET /api/products/{id}/similar
func (h *SearchHandler) SimilarProducts(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")
	if productID == "" {
		respondWithError(w, http.StatusBadRequest, "product ID is required")
		return
	}

	ids, err := h.search.SimilarProducts(r.Context(), productID, queryInt(r, "limit"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to find similar products")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"product_ids": ids,
		"count":       len(ids),
	})
}
