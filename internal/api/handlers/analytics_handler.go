package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/productsearch/internal/domain/entities"
)

// AnalyticsReporter defines the reports exposed over HTTP.
type AnalyticsReporter interface {
	TrendingProducts(ctx context.Context, days, limit int) ([]*entities.TrendingProduct, error)
	CartAbandonmentRate(ctx context.Context, days int) (float64, error)
	TopSearchKeywords(ctx context.Context, days, limit int) ([]*entities.KeywordStat, error)
	NoResultSearches(ctx context.Context, days, limit int) ([]*entities.NoResultQuery, error)
	UserInteractionSummary(ctx context.Context, userID string) (*entities.UserInteractionSummary, error)
}

// AnalyticsHandler serves read-only analytics reports
type AnalyticsHandler struct {
	reports AnalyticsReporter
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(reports AnalyticsReporter) *AnalyticsHandler {
	return &AnalyticsHandler{reports: reports}
}

// TrendingProducts handles GET /api/analytics/trending
func (h *AnalyticsHandler) TrendingProducts(w http.ResponseWriter, r *http.Request) {
	trending, err := h.reports.TrendingProducts(r.Context(), queryInt(r, "days"), queryInt(r, "limit"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to load trending products")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"products": trending,
		"count":    len(trending),
	})
}

// CartAbandonment handles GET /api/analytics/cart-abandonment
func (h *AnalyticsHandler) CartAbandonment(w http.ResponseWriter, r *http.Request) {
	rate, err := h.reports.CartAbandonmentRate(r.Context(), queryInt(r, "days"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to compute cart abandonment")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]float64{
		"abandonment_rate": rate,
	})
}

// TopKeywords handles GET /api/analytics/top-keywords
func (h *AnalyticsHandler) TopKeywords(w http.ResponseWriter, r *http.Request) {
	keywords, err := h.reports.TopSearchKeywords(r.Context(), queryInt(r, "days"), queryInt(r, "limit"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to load search keywords")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"keywords": keywords,
		"count":    len(keywords),
	})
}

// NoResults handles GET /api/analytics/no-results
func (h *AnalyticsHandler) NoResults(w http.ResponseWriter, r *http.Request) {
	queries, err := h.reports.NoResultSearches(r.Context(), queryInt(r, "days"), queryInt(r, "limit"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to load no-result searches")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"queries": queries,
		"count":   len(queries),
	})
}

// UserSummary handles GET /api/analytics/users/{id}/summary
func (h *AnalyticsHandler) UserSummary(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "user ID is required")
		return
	}

	summary, err := h.reports.UserInteractionSummary(r.Context(), userID)
	if err != nil {
		respondWithAppError(w, r, err, "failed to summarize user interactions")
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}
