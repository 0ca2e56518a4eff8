package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/productsearch/internal/domain/entities"
)

// EmbeddingAdmin defines the embedding maintenance operations used by the handler.
type EmbeddingAdmin interface {
	Stats(ctx context.Context) (*entities.EmbeddingStats, error)
	EmbedAllMissing(ctx context.Context) (*entities.BackfillSummary, error)
	EmbedStale(ctx context.Context) (*entities.BackfillSummary, error)
	EmbedProduct(ctx context.Context, productID string) (*entities.ProductEmbedding, error)
}

// EmbeddingHandler exposes embedding coverage and regeneration
type EmbeddingHandler struct {
	embeddings EmbeddingAdmin
}

// NewEmbeddingHandler creates a new embedding handler
func NewEmbeddingHandler(embeddings EmbeddingAdmin) *EmbeddingHandler {
	return &EmbeddingHandler{embeddings: embeddings}
}

// Stats handles GET /api/embeddings/stats
func (h *EmbeddingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.embeddings.Stats(r.Context())
	if err != nil {
		respondWithAppError(w, r, err, "failed to load embedding stats")
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// Backfill handles POST /api/embeddings/backfill. With ?stale=true it
// regenerates outdated vectors instead of missing ones.
func (h *EmbeddingHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	run := h.embeddings.EmbedAllMissing
	if queryBool(r, "stale") {
		run = h.embeddings.EmbedStale
	}

	summary, err := run(r.Context())
	if err != nil {
		respondWithAppError(w, r, err, "embedding backfill failed")
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

// RegenerateProduct handles POST /api/embeddings/products/{id}
func (h *EmbeddingHandler) RegenerateProduct(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")
	if productID == "" {
		respondWithError(w, http.StatusBadRequest, "product ID is required")
		return
	}

	embedding, err := h.embeddings.EmbedProduct(r.Context(), productID)
	if err != nil {
		respondWithAppError(w, r, err, "failed to regenerate embedding")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"product_id":    embedding.ProductID,
		"model_version": embedding.ModelVersion,
		"content_hash":  embedding.ContentHash,
		"dimensions":    len(embedding.Vector),
	})
}
