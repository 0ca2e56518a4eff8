package routes

import (
	"net/http"

	"github.com/zatekoja/productsearch/internal/api/handlers"
	"github.com/zatekoja/productsearch/internal/api/middleware"
	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
)

// Router holds the REST handlers and shared middleware
type Router struct {
	mux *http.ServeMux

	healthHandler    *handlers.HealthHandler
	searchHandler    *handlers.SearchHandler
	trackingHandler  *handlers.TrackingHandler
	analyticsHandler *handlers.AnalyticsHandler
	embeddingHandler *handlers.EmbeddingHandler

	cacheMiddleware *middleware.CacheMiddleware
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// NewRouter creates a new router. cacheMiddleware and embeddingHandler may
// be nil; a nil healthHandler serves liveness only.
func NewRouter(
	healthHandler *handlers.HealthHandler,
	searchHandler *handlers.SearchHandler,
	trackingHandler *handlers.TrackingHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	embeddingHandler *handlers.EmbeddingHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:              http.NewServeMux(),
		healthHandler:    healthHandler,
		searchHandler:    searchHandler,
		trackingHandler:  trackingHandler,
		analyticsHandler: analyticsHandler,
		embeddingHandler: embeddingHandler,
		cacheMiddleware:  cacheMiddleware,
		allowedOrigins:   allowedOrigins,
		metrics:          metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	health := r.healthHandler
	if health == nil {
		health = handlers.NewHealthHandler(nil)
	}
	r.mux.HandleFunc("GET /health", health.Live)
	r.mux.HandleFunc("GET /ready", health.Ready)

	// Search
	r.mux.HandleFunc("GET /api/search", r.searchHandler.Search)
	r.mux.HandleFunc("GET /api/search/advanced", r.searchHandler.AdvancedSearch)
	r.mux.HandleFunc("GET /api/search/suggestions", r.searchHandler.Suggestions)
	r.mux.HandleFunc("GET /api/products/{id}/similar", r.searchHandler.SimilarProducts)

	// Tracking
	r.mux.HandleFunc("POST /api/track/view", r.trackingHandler.TrackView)
	r.mux.HandleFunc("POST /api/track/cart-add", r.trackingHandler.TrackCartAdd)
	r.mux.HandleFunc("POST /api/track/cart-remove", r.trackingHandler.TrackCartRemove)
	r.mux.HandleFunc("POST /api/track/favorite", r.trackingHandler.TrackFavorite)
	r.mux.HandleFunc("POST /api/track/purchase", r.trackingHandler.TrackPurchase)
	r.mux.HandleFunc("POST /api/track/search", r.trackingHandler.TrackSearch)
	r.mux.HandleFunc("POST /api/track/search-click", r.trackingHandler.TrackSearchClick)
	r.mux.HandleFunc("POST /api/track/page-exit", r.trackingHandler.TrackPageExit)

	// Analytics
	r.mux.HandleFunc("GET /api/analytics/trending", r.analyticsHandler.TrendingProducts)
	r.mux.HandleFunc("GET /api/analytics/cart-abandonment", r.analyticsHandler.CartAbandonment)
	r.mux.HandleFunc("GET /api/analytics/top-keywords", r.analyticsHandler.TopKeywords)
	r.mux.HandleFunc("GET /api/analytics/no-results", r.analyticsHandler.NoResults)
	r.mux.HandleFunc("GET /api/analytics/users/{id}/summary", r.analyticsHandler.UserSummary)

	// Embedding maintenance
	if r.embeddingHandler != nil {
		r.mux.HandleFunc("GET /api/embeddings/stats", r.embeddingHandler.Stats)
		r.mux.HandleFunc("POST /api/embeddings/backfill", r.embeddingHandler.Backfill)
		r.mux.HandleFunc("POST /api/embeddings/products/{id}", r.embeddingHandler.RegenerateProduct)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
