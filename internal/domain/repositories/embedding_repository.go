package repositories

import (
	"context"

	"github.com/zatekoja/productsearch/internal/domain/entities"
)

// EmbeddingRepository stores one vector per product.
type EmbeddingRepository interface {
	// Upsert inserts or overwrites the vector keyed by ProductID.
	Upsert(ctx context.Context, embedding *entities.ProductEmbedding) error
	GetByProductID(ctx context.Context, productID string) (*entities.ProductEmbedding, error)
	// ListAll returns every stored vector, optionally excluding one product.
	ListAll(ctx context.Context, excludeProductID string) ([]*entities.ProductEmbedding, error)
	// ListHashes maps product id to the content hash of its stored vector.
	ListHashes(ctx context.Context) (map[string]string, error)
	Count(ctx context.Context) (int, error)
}
