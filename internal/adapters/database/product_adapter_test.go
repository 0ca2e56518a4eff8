package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/productsearch/internal/adapters/database"
	"github.com/zatekoja/productsearch/internal/domain/entities"
)

var productRowColumns = []string{"id", "name", "description", "category", "brand", "price", "rating", "stock", "created_at", "updated_at"}

func TestProductAdapter_FindCandidatesMatchesAnyFieldAnyWord(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewProductAdapter(client)
	now := time.Now()

	mock.ExpectQuery(`(?s)FROM "products" WHERE .*translate\(lower\("name"\).*ILIKE '%فلتر%'.*translate\(lower\("brand"\).*ILIKE '%مياه%'.*LIMIT 20`).
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow("p1", "فلتر مياه خارجي", "فلتر قوي", "Filters", "Eheim", "45000", "4.5", 3, now, now))

	products, err := adapter.FindCandidates(context.Background(), []string{"فلتر", "مياه"}, 20)

	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "فلتر مياه خارجي", products[0].Name)
	assert.InDelta(t, 45000, products[0].Price, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductAdapter_FindCandidatesWithoutWords(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewProductAdapter(client)

	products, err := adapter.FindCandidates(context.Background(), nil, 20)

	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductAdapter_ListAppliesFilters(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewProductAdapter(client)
	minPrice := 1000.0

	mock.ExpectQuery(`(?s)WHERE \(\("category" = 'Lighting'\) AND \("price" >= 1000\) AND \("stock" > 0\)\).*LIMIT 5`).
		WillReturnRows(sqlmock.NewRows(productRowColumns))

	_, err := adapter.List(context.Background(), entities.ProductFilter{
		Category: "Lighting",
		MinPrice: &minPrice,
		InStock:  true,
		Limit:    5,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductAdapter_ListWithoutEmbedding(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewProductAdapter(client)

	mock.ExpectQuery(`(?s)LEFT JOIN "product_embeddings" AS "e" ON \("e"\."product_id" = "p"\."id"\) WHERE \("e"\."product_id" IS NULL\)`).
		WillReturnRows(sqlmock.NewRows(productRowColumns))

	products, err := adapter.ListWithoutEmbedding(context.Background(), 0)

	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductAdapter_Count(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewProductAdapter(client)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "products"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := adapter.Count(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 42, count)
}
