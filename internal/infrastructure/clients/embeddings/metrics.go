package embeddings

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type embeddingMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	rateLimitWait   metric.Float64Histogram
	cacheHits       metric.Int64Counter
}

var (
	embeddingMetricsOnce sync.Once
	embeddingMetricsInst *embeddingMetrics
)

func ensureEmbeddingMetrics() *embeddingMetrics {
	embeddingMetricsOnce.Do(func() {
		meter := otel.Meter("github.com/zatekoja/productsearch/embeddings")

		requestCount, err := meter.Int64Counter(
			"ai.embedding.request.count",
			metric.WithDescription("Number of embedding provider requests"),
		)
		if err != nil {
			return
		}
		requestDuration, err := meter.Float64Histogram(
			"ai.embedding.request.duration",
			metric.WithDescription("Embedding request duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}
		requestErrors, err := meter.Int64Counter(
			"ai.embedding.request.errors",
			metric.WithDescription("Number of embedding request errors"),
		)
		if err != nil {
			return
		}
		rateLimitWait, err := meter.Float64Histogram(
			"ai.embedding.rate_limit.wait",
			metric.WithDescription("Time spent waiting for the embedding rate limiter in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}
		cacheHits, err := meter.Int64Counter(
			"ai.embedding.cache.hits",
			metric.WithDescription("Query embeddings served from cache"),
		)
		if err != nil {
			return
		}

		embeddingMetricsInst = &embeddingMetrics{
			requestCount:    requestCount,
			requestDuration: requestDuration,
			requestErrors:   requestErrors,
			rateLimitWait:   rateLimitWait,
			cacheHits:       cacheHits,
		}
	})
	return embeddingMetricsInst
}

func recordEmbeddingMetric(ctx context.Context, provider, model string, statusCode int, duration time.Duration, err error) {
	m := ensureEmbeddingMetrics()
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", provider),
		attribute.String("ai.model", model),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	m.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		m.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func recordRateLimitWait(ctx context.Context, provider, model string, wait time.Duration) {
	m := ensureEmbeddingMetrics()
	if m == nil {
		return
	}
	m.rateLimitWait.Record(ctx, float64(wait.Milliseconds()), metric.WithAttributes(
		attribute.String("ai.provider", provider),
		attribute.String("ai.model", model),
	))
}

func recordCacheHit(ctx context.Context, tier string) {
	m := ensureEmbeddingMetrics()
	if m == nil {
		return
	}
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.tier", tier)))
}
