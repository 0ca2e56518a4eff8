package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/productsearch/internal/adapters/database"
	"github.com/zatekoja/productsearch/internal/domain/entities"
	apperrors "github.com/zatekoja/productsearch/pkg/errors"
)

func TestInteractionAdapter_Create(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewInteractionAdapter(client)

	mock.ExpectExec(`(?s)INSERT INTO "product_interactions".*"interaction_type".*'cart_add'`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	interaction := &entities.ProductInteraction{
		SessionID: "s1",
		ProductID: "p1",
		Type:      entities.InteractionCartAdd,
		Metadata:  entities.InteractionMetadata{Quantity: 2},
	}
	require.NoError(t, adapter.Create(context.Background(), interaction))
	assert.NotEmpty(t, interaction.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionAdapter_CreateRejectsUnknownType(t *testing.T) {
	client, _ := setupMockClient(t)
	adapter := database.NewInteractionAdapter(client)

	err := adapter.Create(context.Background(), &entities.ProductInteraction{Type: "wishlist"})
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}

func TestInteractionAdapter_UpdateLatestView(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewInteractionAdapter(client)
	depth := 80

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT id, duration FROM product_interactions.*ORDER BY created_at DESC.*FOR UPDATE`).
		WithArgs("s1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "duration"}).AddRow("latest-view", nil))
	mock.ExpectExec(`UPDATE product_interactions SET duration`).
		WithArgs(45, sqlmock.AnyArg(), "latest-view").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := adapter.UpdateLatestView(context.Background(), "s1", "p1", 45, &depth)

	require.NoError(t, err)
	assert.True(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionAdapter_UpdateLatestViewWithoutView(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewInteractionAdapter(client)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM product_interactions`).
		WithArgs("s1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "duration"}))
	mock.ExpectCommit()

	updated, err := adapter.UpdateLatestView(context.Background(), "s1", "p1", 45, nil)

	require.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionAdapter_UpdateLatestViewAlreadyClosed(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewInteractionAdapter(client)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, duration FROM product_interactions`).
		WithArgs("s1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "duration"}).AddRow("view-1", 45))
	mock.ExpectCommit()

	updated, err := adapter.UpdateLatestView(context.Background(), "s1", "p1", 90, nil)

	require.NoError(t, err)
	assert.False(t, updated)
	// no UPDATE expected; sqlmock fails on any unexpected exec
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionAdapter_UpdateLatestViewRollsBack(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewInteractionAdapter(client)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM product_interactions`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "duration"}).AddRow("v1", nil))
	mock.ExpectExec(`UPDATE product_interactions`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := adapter.UpdateLatestView(context.Background(), "s1", "p1", 10, nil)

	assert.Equal(t, apperrors.ErrorTypeInternal, apperrors.TypeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionAdapter_ListRecentByUser(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewInteractionAdapter(client)
	now := time.Now()

	mock.ExpectQuery(`(?s)FROM product_interactions.*WHERE user_id = \$1`).
		WithArgs("u1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "session_id", "product_id", "interaction_type", "duration", "scroll_depth", "metadata", "created_at"}).
			AddRow("i1", "u1", "s1", "p1", "view", 30, nil, []byte(`{"from":"search"}`), now).
			AddRow("i2", "u1", "s1", "p2", "purchase", nil, nil, []byte(`{"order_id":"o1","quantity":1}`), now))

	list, err := adapter.ListRecentByUser(context.Background(), "u1", 50)

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, entities.InteractionView, list[0].Type)
	require.NotNil(t, list[0].Duration)
	assert.Equal(t, 30, *list[0].Duration)
	assert.Nil(t, list[0].ScrollDepth)
	assert.Equal(t, "search", list[0].Metadata.From)
	assert.Equal(t, "o1", list[1].Metadata.OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionAdapter_TrendingProducts(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewInteractionAdapter(client)

	mock.ExpectQuery(`(?s)SELECT "product_id", COUNT\(\*\) AS "views" FROM "product_interactions".*GROUP BY "product_id" ORDER BY "views" DESC, "product_id" ASC LIMIT 5`).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "views"}).
			AddRow("p1", 12).
			AddRow("p2", 7))

	trending, err := adapter.TrendingProducts(context.Background(), time.Now().AddDate(0, 0, -7), 5)

	require.NoError(t, err)
	require.Len(t, trending, 2)
	assert.Equal(t, 12, trending[0].Views)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionAdapter_CountCartActivity(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := database.NewInteractionAdapter(client)

	mock.ExpectQuery(`(?s)COUNT\(\*\) FILTER \(WHERE interaction_type = 'cart_add'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"cart_adds", "purchases"}).AddRow(10, 3))

	counts, err := adapter.CountCartActivity(context.Background(), time.Now().AddDate(0, 0, -30))

	require.NoError(t, err)
	assert.Equal(t, 10, counts.CartAdds)
	assert.Equal(t, 3, counts.Purchases)
}
