package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/zatekoja/productsearch/internal/domain/entities"
	"github.com/zatekoja/productsearch/internal/domain/repositories"
	"github.com/zatekoja/productsearch/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/productsearch/pkg/errors"
)

const productsTable = "products"

var (
	productColumns = []interface{}{
		"id", "name", "description", "category", "brand",
		"price", "rating", "stock", "created_at", "updated_at",
	}
	productTextColumns = []string{"name", "description", "category", "brand"}
)

// ProductAdapter reads the catalog from Postgres.
type ProductAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewProductAdapter creates a new product adapter.
func NewProductAdapter(client *postgres.Client) repositories.ProductRepository {
	return &ProductAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

func (a *ProductAdapter) selectProducts(ctx context.Context, ds *goqu.SelectDataset, op string) ([]*entities.Product, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build "+op+" query", err)
	}

	products := []*entities.Product{}
	if err := a.client.DBX().SelectContext(ctx, &products, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to "+op, err)
	}
	return products, nil
}

// GetByID retrieves a product by ID
func (a *ProductAdapter) GetByID(ctx context.Context, id string) (*entities.Product, error) {
	query, args, err := a.db.From(productsTable).Select(productColumns...).Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build product query", err)
	}

	product := &entities.Product{}
	if err := a.client.DBX().GetContext(ctx, product, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("product %s not found", id))
		}
		return nil, apperrors.NewInternalError("failed to get product", err)
	}
	return product, nil
}

// GetByIDs retrieves products by ID in no particular order. Unknown IDs are
// skipped.
func (a *ProductAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Product, error) {
	if len(ids) == 0 {
		return []*entities.Product{}, nil
	}
	ds := a.db.From(productsTable).
		Select(productColumns...).
		Where(goqu.L("id = ANY(?)", pq.Array(ids)))
	return a.selectProducts(ctx, ds, "get products")
}

// FindCandidates pre-filters the catalog for lexical scoring.
func (a *ProductAdapter) FindCandidates(ctx context.Context, words []string, limit int) ([]*entities.Product, error) {
	if len(words) == 0 || limit <= 0 {
		return []*entities.Product{}, nil
	}
	ds := a.db.From(productsTable).
		Select(productColumns...).
		Where(anyFieldContainsAnyWord(productTextColumns, words)).
		Order(goqu.C("id").Asc()).
		Limit(uint(limit))
	return a.selectProducts(ctx, ds, "find candidate products")
}

// SearchNames returns product names containing fragment.
func (a *ProductAdapter) SearchNames(ctx context.Context, fragment string, limit int) ([]string, error) {
	if fragment == "" || limit <= 0 {
		return []string{}, nil
	}
	query, args, err := a.db.From(productsTable).
		Select(goqu.C("name")).
		Distinct().
		Where(foldedColumn("name").ILike(containsPattern(fragment))).
		Order(goqu.C("name").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build product name query", err)
	}

	names := []string{}
	if err := a.client.DBX().SelectContext(ctx, &names, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to search product names", err)
	}
	return names, nil
}

// List returns products passing filter, newest first.
func (a *ProductAdapter) List(ctx context.Context, filter entities.ProductFilter) ([]*entities.Product, error) {
	ds := a.db.From(productsTable).Select(productColumns...)

	if filter.Category != "" {
		ds = ds.Where(goqu.C("category").Eq(filter.Category))
	}
	if filter.MinPrice != nil {
		ds = ds.Where(goqu.C("price").Gte(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		ds = ds.Where(goqu.C("price").Lte(*filter.MaxPrice))
	}
	if filter.MinRating != nil {
		ds = ds.Where(goqu.C("rating").Gte(*filter.MinRating))
	}
	if filter.InStock {
		ds = ds.Where(goqu.C("stock").Gt(0))
	}

	ds = ds.Order(goqu.C("created_at").Desc(), goqu.C("id").Asc())
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	return a.selectProducts(ctx, ds, "list products")
}

// ListAll returns the whole catalog ordered by id.
func (a *ProductAdapter) ListAll(ctx context.Context) ([]*entities.Product, error) {
	ds := a.db.From(productsTable).Select(productColumns...).Order(goqu.C("id").Asc())
	return a.selectProducts(ctx, ds, "list all products")
}

// Count returns the catalog size.
func (a *ProductAdapter) Count(ctx context.Context) (int, error) {
	query, args, err := a.db.From(productsTable).Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build product count query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count products", err)
	}
	return count, nil
}

// ListWithoutEmbedding returns products lacking a stored vector. A limit of
// zero returns all of them.
func (a *ProductAdapter) ListWithoutEmbedding(ctx context.Context, limit int) ([]*entities.Product, error) {
	cols := make([]interface{}, 0, len(productColumns))
	for _, c := range productColumns {
		cols = append(cols, goqu.I("p."+c.(string)))
	}

	ds := a.db.From(goqu.T(productsTable).As("p")).
		Select(cols...).
		LeftJoin(goqu.T(embeddingsTable).As("e"), goqu.On(goqu.I("e.product_id").Eq(goqu.I("p.id")))).
		Where(goqu.I("e.product_id").IsNull()).
		Order(goqu.I("p.id").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	return a.selectProducts(ctx, ds, "list products without embeddings")
}
