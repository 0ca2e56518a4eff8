package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/productsearch/internal/domain/entities"
	"github.com/zatekoja/productsearch/internal/domain/repositories"
	tsclient "github.com/zatekoja/productsearch/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/productsearch/pkg/utils"
)

const queryByFields = "name,description,category,brand"

// TypesenseAdapter implements the product candidate index using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ repositories.ProductSearchIndex = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	return a.client.InitSchema(ctx)
}

// BuildProductDocument converts a product into its index document. Text is
// stored normalized so index tokens line up with normalized queries.
func BuildProductDocument(product *entities.Product) map[string]interface{} {
	return map[string]interface{}{
		"id":          product.ID,
		"name":        utils.NormalizeQuery(product.Name),
		"description": utils.NormalizeQuery(product.Description),
		"category":    utils.NormalizeQuery(product.Category),
		"brand":       utils.NormalizeQuery(product.Brand),
		"price":       product.Price,
		"rating":      product.Rating,
		"in_stock":    product.InStock(),
		"updated_at":  product.UpdatedAt.Unix(),
	}
}

// Index upserts one product.
func (a *TypesenseAdapter) Index(ctx context.Context, product *entities.Product) error {
	_, err := a.client.Client().Collection(a.client.Collection()).Documents().Upsert(ctx, BuildProductDocument(product))
	if err != nil {
		return fmt.Errorf("failed to index product %s: %w", product.ID, err)
	}
	return nil
}

// IndexBatch upserts products one by one and reports the first failure
// after attempting all of them.
func (a *TypesenseAdapter) IndexBatch(ctx context.Context, products []*entities.Product) error {
	var firstErr error
	failed := 0
	for _, p := range products {
		if err := a.Index(ctx, p); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return fmt.Errorf("%d of %d products failed to index: %w", failed, len(products), firstErr)
	}
	return nil
}

// Delete removes a product from index
func (a *TypesenseAdapter) Delete(ctx context.Context, productID string) error {
	_, err := a.client.Client().Collection(a.client.Collection()).Document(productID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete product from index: %w", err)
	}
	return nil
}

// Candidates returns ids of products matching any of words. Tokens are
// dropped until at least limit hits are found, which gives "any word"
// semantics.
func (a *TypesenseAdapter) Candidates(ctx context.Context, words []string, limit int) ([]string, error) {
	if len(words) == 0 || limit <= 0 {
		return []string{}, nil
	}

	searchParams := &api.SearchCollectionParams{
		Q:                   pointer.String(strings.Join(words, " ")),
		QueryBy:             pointer.String(queryByFields),
		DropTokensThreshold: pointer.Int(limit),
		Page:                pointer.Int(1),
		PerPage:             pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(a.client.Collection()).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}

	ids := []string{}
	if result.Hits == nil {
		return ids, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if id, ok := (*hit.Document)["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
