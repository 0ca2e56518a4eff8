package middleware

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
)

// ObservabilityMiddleware traces each request under its route pattern and
// records request count and latency. Health probes are passed through.
func ObservabilityMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			ctx, span := observability.StartSpan(r.Context(), r.Method)
			defer span.End()

			observability.SetSpanAttributes(span,
				semconv.HTTPMethod(r.Method),
				semconv.UserAgentOriginal(r.UserAgent()),
			)
			if r.URL.Query().Get("user_id") != "" {
				observability.SetSpanAttributes(span, attribute.Bool("search.personalized", true))
			}

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()

			// The mux records the matched pattern on the request it is given.
			req := r.WithContext(ctx)
			next.ServeHTTP(rw, req)

			// Route pattern keeps product and user ids out of span names.
			route := routePattern(req)
			span.SetName(r.Method + " " + route)
			observability.RecordRequestMetric(ctx, metrics, r.Method, route, rw.statusCode, time.Since(start))
			observability.SetSpanAttributes(span,
				semconv.HTTPRoute(route),
				semconv.HTTPStatusCode(rw.statusCode),
			)
		})
	}
}

// routePattern returns the mux pattern without its method prefix, falling
// back to the raw path for unmatched requests.
func routePattern(r *http.Request) string {
	pattern := r.Pattern
	if pattern == "" {
		return r.URL.Path
	}
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == ' ' {
			return pattern[i+1:]
		}
	}
	return pattern
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}
