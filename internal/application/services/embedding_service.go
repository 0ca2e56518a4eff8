package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/productsearch/internal/domain/entities"
	"github.com/zatekoja/productsearch/internal/domain/providers"
	"github.com/zatekoja/productsearch/internal/domain/repositories"
	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
	"github.com/zatekoja/productsearch/pkg/config"
	apperrors "github.com/zatekoja/productsearch/pkg/errors"
)

const embeddingComponent = "embedding_service"

// catalogKeywords are domain terms copied into the embedding text when they
// occur in a product's name or description.
var catalogKeywords = []string{
	"حوض", "سمك", "فلتر", "مضخة", "سخان", "إضاءة", "led", "زينة", "ديكور",
	"طعام", "غذاء", "نباتات", "حصى", "رمل", "أكسجين", "هواء", "تنظيف",
	"صيانة", "كيماويات", "معالجة", "مياه", "ماء", "أدوات", "اكسسوارات",
	"ذهبي", "استوائي", "بحري", "عذب", "مالح", "كبير", "صغير", "متوسط",
	"aquarium", "fish", "tank", "filter", "pump", "heater", "light",
	"decoration", "food", "plants", "gravel", "oxygen", "air",
}

// EmbeddingService generates, stores and compares product vectors.
type EmbeddingService struct {
	products   repositories.ProductRepository
	embeddings repositories.EmbeddingRepository
	provider   providers.EmbeddingProvider
	cfg        config.EmbeddingConfig
	workers    int
	metrics    *observability.Metrics
}

// NewEmbeddingService creates the embedding service. workers bounds the
// number of products embedded concurrently within one batch.
func NewEmbeddingService(
	products repositories.ProductRepository,
	embeddings repositories.EmbeddingRepository,
	provider providers.EmbeddingProvider,
	cfg config.EmbeddingConfig,
	workers int,
	metrics *observability.Metrics,
) *EmbeddingService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if workers <= 0 || workers > cfg.BatchSize {
		workers = cfg.BatchSize
	}
	return &EmbeddingService{
		products:   products,
		embeddings: embeddings,
		provider:   provider,
		cfg:        cfg,
		workers:    workers,
		metrics:    metrics,
	}
}

// BuildProductText renders the descriptive text a product vector is built
// from.
func BuildProductText(p *entities.Product) string {
	parts := make([]string, 0, 7)
	if p.Name != "" {
		parts = append(parts, "Product: "+p.Name)
	}
	if p.Category != "" {
		parts = append(parts, "Category: "+p.Category)
	}
	if p.Brand != "" {
		parts = append(parts, "Brand: "+p.Brand)
	}
	if p.Description != "" {
		parts = append(parts, "Description: "+p.Description)
	}
	if p.Price > 0 {
		parts = append(parts, "Price range: "+priceTier(p.Price))
	}
	if p.Rating > 0 {
		parts = append(parts, fmt.Sprintf("Rating: %s (%.1f/5)", ratingTier(p.Rating), p.Rating))
	}
	if kw := matchedKeywords(p.Name + " " + p.Description); len(kw) > 0 {
		parts = append(parts, "Keywords: "+strings.Join(kw, " "))
	}
	return strings.Join(parts, "\n")
}

func priceTier(price float64) string {
	switch {
	case price < 20000:
		return "budget"
	case price < 50000:
		return "mid-range"
	case price < 100000:
		return "high-end"
	default:
		return "premium"
	}
}

func ratingTier(rating float64) string {
	switch {
	case rating >= 4.5:
		return "excellent"
	case rating >= 4:
		return "very good"
	case rating >= 3:
		return "good"
	default:
		return "average"
	}
}

func matchedKeywords(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range catalogKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// ContentHash fingerprints product text so stale vectors can be detected.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// CosineSimilarity returns the cosine of the angle between a and b. It is 0
// when either vector has zero magnitude.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", apperrors.ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Embed turns text into a vector within the configured timeout. Any provider
// failure, including a timeout, is returned as an external error.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	vec, err := s.provider.Embed(ctx, text)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to generate embedding", err)
	}
	if len(vec) == 0 {
		return nil, apperrors.NewExternalError("embedding provider returned an empty vector", nil)
	}
	return vec, nil
}

func (s *EmbeddingService) embedDocument(ctx context.Context, text string) ([]float32, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	// Product text goes through the batch path so it bypasses the query cache.
	vecs, err := s.provider.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, apperrors.NewExternalError("failed to generate product embedding", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, apperrors.NewExternalError("embedding provider returned no vector", nil)
	}
	return vecs[0], nil
}

// EmbedProduct regenerates and stores the vector for one product.
func (s *EmbeddingService) EmbedProduct(ctx context.Context, productID string) (*entities.ProductEmbedding, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.embedAndStore(ctx, product)
}

func (s *EmbeddingService) embedAndStore(ctx context.Context, product *entities.Product) (*entities.ProductEmbedding, error) {
	ctx, span := observability.StartSpan(ctx, "embedding.product")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("product.id", product.ID))

	text := BuildProductText(product)
	vec, err := s.embedDocument(ctx, text)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	embedding := &entities.ProductEmbedding{
		ID:           uuid.New().String(),
		ProductID:    product.ID,
		Vector:       vec,
		ModelVersion: s.provider.Model(),
		ContentHash:  ContentHash(text),
	}
	if err := s.embeddings.Upsert(ctx, embedding); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	return embedding, nil
}

// EmbedAllMissing embeds every product without a stored vector in batches,
// pausing between batches. A failed product is counted and skipped. Running
// it again after a clean run finds nothing to do.
func (s *EmbeddingService) EmbedAllMissing(ctx context.Context) (*entities.BackfillSummary, error) {
	products, err := s.products.ListWithoutEmbedding(ctx, 0)
	if err != nil {
		return nil, err
	}
	observability.ComponentLogger(ctx, embeddingComponent).Info().
		Int("products", len(products)).Msg("embedding products without vectors")
	return s.embedInBatches(ctx, products)
}

// EmbedStale regenerates vectors whose stored content hash no longer matches
// the product's current text. Products without a vector are left to
// EmbedAllMissing.
func (s *EmbeddingService) EmbedStale(ctx context.Context) (*entities.BackfillSummary, error) {
	hashes, err := s.embeddings.ListHashes(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.products.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	stale := make([]*entities.Product, 0)
	for _, p := range products {
		stored, ok := hashes[p.ID]
		if !ok {
			continue
		}
		if stored != ContentHash(BuildProductText(p)) {
			stale = append(stale, p)
		}
	}
	observability.ComponentLogger(ctx, embeddingComponent).Info().
		Int("products", len(stale)).Msg("regenerating stale embeddings")
	return s.embedInBatches(ctx, stale)
}

func (s *EmbeddingService) embedInBatches(ctx context.Context, products []*entities.Product) (*entities.BackfillSummary, error) {
	summary := &entities.BackfillSummary{}
	if len(products) == 0 {
		return summary, nil
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create worker pool", err)
	}
	defer pool.Release()

	logger := observability.ComponentLogger(ctx, embeddingComponent)
	var success, failed int64

	for start := 0; start < len(products); start += s.cfg.BatchSize {
		if start > 0 && s.cfg.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				summary.SuccessCount = int(success)
				summary.FailureCount = int(failed)
				summary.TotalProcessed = summary.SuccessCount + summary.FailureCount
				return summary, ctx.Err()
			case <-time.After(s.cfg.BatchDelay):
			}
		}

		end := start + s.cfg.BatchSize
		if end > len(products) {
			end = len(products)
		}

		var wg sync.WaitGroup
		for _, p := range products[start:end] {
			product := p
			wg.Add(1)
			task := func() {
				defer wg.Done()
				if _, err := s.embedAndStore(ctx, product); err != nil {
					atomic.AddInt64(&failed, 1)
					logger.Warn().Err(err).Str("product_id", product.ID).Msg("failed to embed product")
					return
				}
				atomic.AddInt64(&success, 1)
			}
			if err := pool.Submit(task); err != nil {
				wg.Done()
				atomic.AddInt64(&failed, 1)
				logger.Warn().Err(err).Str("product_id", product.ID).Msg("failed to schedule product embedding")
			}
		}
		wg.Wait()

		logger.Debug().Int("done", end).Int("total", len(products)).Msg("embedding batch complete")
	}

	summary.SuccessCount = int(success)
	summary.FailureCount = int(failed)
	summary.TotalProcessed = summary.SuccessCount + summary.FailureCount
	logger.Info().
		Int("success", summary.SuccessCount).
		Int("failed", summary.FailureCount).
		Msg("embedding run finished")
	return summary, nil
}

// FindSimilar returns the limit products whose vectors are closest to the
// given product's, generating its vector first if it has none.
func (s *EmbeddingService) FindSimilar(ctx context.Context, productID string, limit int) ([]entities.SemanticMatch, error) {
	ctx, span := observability.StartSpan(ctx, "embedding.similar")
	defer span.End()

	target, err := s.embeddings.GetByProductID(ctx, productID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			return nil, err
		}
		target, err = s.EmbedProduct(ctx, productID)
		if err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
	}

	others, err := s.embeddings.ListAll(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.rank(ctx, target.Vector, others, limit), nil
}

// SemanticSearch embeds query and returns the limit closest products. The
// list is empty when no vectors are stored or the query cannot be embedded;
// in the latter case the provider error is returned alongside it.
func (s *EmbeddingService) SemanticSearch(ctx context.Context, query string, limit int) ([]entities.SemanticMatch, error) {
	ctx, span := observability.StartSpan(ctx, "search.semantic")
	defer span.End()

	start := time.Now()
	defer func() { observability.RecordSearchStage(ctx, s.metrics, "semantic", time.Since(start)) }()

	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []entities.SemanticMatch{}, nil
	}

	count, err := s.embeddings.Count(ctx)
	if err != nil {
		return []entities.SemanticMatch{}, err
	}
	if count == 0 {
		return []entities.SemanticMatch{}, nil
	}

	vec, err := s.Embed(ctx, query)
	if err != nil {
		observability.RecordError(span, err)
		return []entities.SemanticMatch{}, err
	}

	stored, err := s.embeddings.ListAll(ctx, "")
	if err != nil {
		return []entities.SemanticMatch{}, err
	}
	return s.rank(ctx, vec, stored, limit), nil
}

// rank scores candidates against vec. Vectors of a different dimension are
// logged and skipped.
func (s *EmbeddingService) rank(ctx context.Context, vec []float32, candidates []*entities.ProductEmbedding, limit int) []entities.SemanticMatch {
	matches := make([]entities.SemanticMatch, 0, len(candidates))
	mismatched := 0
	for _, c := range candidates {
		sim, err := CosineSimilarity(vec, c.Vector)
		if err != nil {
			mismatched++
			continue
		}
		matches = append(matches, entities.SemanticMatch{ProductID: c.ProductID, Similarity: sim})
	}
	if mismatched > 0 {
		observability.ComponentLogger(ctx, embeddingComponent).Error().
			Err(apperrors.ErrDimensionMismatch).
			Int("skipped", mismatched).
			Int("dimensions", len(vec)).
			Msg("stored vectors do not match query dimensions")
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ProductID < matches[j].ProductID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Stats reports embedding coverage of the catalog.
func (s *EmbeddingService) Stats(ctx context.Context) (*entities.EmbeddingStats, error) {
	total, err := s.products.Count(ctx)
	if err != nil {
		return nil, err
	}
	with, err := s.embeddings.Count(ctx)
	if err != nil {
		return nil, err
	}

	stats := &entities.EmbeddingStats{
		TotalProducts:     total,
		WithEmbeddings:    with,
		MissingEmbeddings: total - with,
	}
	if stats.MissingEmbeddings < 0 {
		stats.MissingEmbeddings = 0
	}
	if total > 0 {
		stats.CoveragePercent = math.Round(float64(with)/float64(total)*1000) / 10
	}
	return stats, nil
}
