package repositories

import (
	"context"

	"github.com/zatekoja/productsearch/internal/domain/entities"
)

// ProductRepository gives read access to the catalog.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entities.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Product, error)

	// FindCandidates returns products where any of name, description,
	// category or brand contains any of words, capped at limit.
	FindCandidates(ctx context.Context, words []string, limit int) ([]*entities.Product, error)

	// SearchNames returns distinct product names containing fragment.
	SearchNames(ctx context.Context, fragment string, limit int) ([]string, error)

	List(ctx context.Context, filter entities.ProductFilter) ([]*entities.Product, error)
	ListAll(ctx context.Context) ([]*entities.Product, error)
	Count(ctx context.Context) (int, error)

	// ListWithoutEmbedding returns products that have no stored vector.
	ListWithoutEmbedding(ctx context.Context, limit int) ([]*entities.Product, error)
}

// ProductSearchIndex is an external full-text index that can stand in for
// the store-level candidate pre-filter.
type ProductSearchIndex interface {
	InitSchema(ctx context.Context) error
	Index(ctx context.Context, product *entities.Product) error
	IndexBatch(ctx context.Context, products []*entities.Product) error
	Delete(ctx context.Context, productID string) error
	// Candidates returns ids of products matching any of words.
	Candidates(ctx context.Context, words []string, limit int) ([]string, error)
}
