package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/zatekoja/productsearch/internal/domain/entities"
	"github.com/zatekoja/productsearch/internal/domain/repositories"
	"github.com/zatekoja/productsearch/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/productsearch/pkg/errors"
)

const interactionsTable = "product_interactions"

// InteractionAdapter persists product interactions in Postgres.
type InteractionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewInteractionAdapter creates a new interaction adapter.
func NewInteractionAdapter(client *postgres.Client) repositories.InteractionRepository {
	return &InteractionAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

type interactionRow struct {
	ID          string                       `db:"id"`
	UserID      sql.NullString               `db:"user_id"`
	SessionID   string                       `db:"session_id"`
	ProductID   string                       `db:"product_id"`
	Type        string                       `db:"interaction_type"`
	Duration    sql.NullInt64                `db:"duration"`
	ScrollDepth sql.NullInt64                `db:"scroll_depth"`
	Metadata    entities.InteractionMetadata `db:"metadata"`
	CreatedAt   time.Time                    `db:"created_at"`
}

func (r *interactionRow) toEntity() *entities.ProductInteraction {
	return &entities.ProductInteraction{
		ID:          r.ID,
		UserID:      r.UserID.String,
		SessionID:   r.SessionID,
		ProductID:   r.ProductID,
		Type:        entities.InteractionType(r.Type),
		Duration:    intPtr(r.Duration),
		ScrollDepth: intPtr(r.ScrollDepth),
		Metadata:    r.Metadata,
		CreatedAt:   r.CreatedAt,
	}
}

// Create inserts an interaction record.
func (a *InteractionAdapter) Create(ctx context.Context, interaction *entities.ProductInteraction) error {
	if interaction == nil {
		return apperrors.NewValidationError("interaction is nil")
	}
	if !interaction.Type.Valid() {
		return apperrors.NewValidationError("unknown interaction type " + string(interaction.Type))
	}
	if interaction.ID == "" {
		interaction.ID = uuid.New().String()
	}
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = time.Now().UTC()
	}

	record := goqu.Record{
		"id":               interaction.ID,
		"user_id":          nullString(interaction.UserID),
		"session_id":       interaction.SessionID,
		"product_id":       interaction.ProductID,
		"interaction_type": string(interaction.Type),
		"duration":         nullInt(interaction.Duration),
		"scroll_depth":     nullInt(interaction.ScrollDepth),
		"metadata":         interaction.Metadata,
		"created_at":       interaction.CreatedAt,
	}

	query, args, err := a.db.Insert(interactionsTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build interaction insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create interaction", err)
	}
	return nil
}

// UpdateLatestView locks the most recent view for the session and product and
// fills in its exit measurements. Older views are never touched, and a view
// that already has a duration is left as is.
func (a *InteractionAdapter) UpdateLatestView(ctx context.Context, sessionID, productID string, duration int, scrollDepth *int) (bool, error) {
	updated := false
	err := a.client.WithTx(ctx, func(tx *sqlx.Tx) error {
		var id string
		var closed sql.NullInt64
		err := tx.QueryRowxContext(ctx, `
			SELECT id, duration FROM product_interactions
			WHERE session_id = $1 AND product_id = $2 AND interaction_type = 'view'
			ORDER BY created_at DESC
			LIMIT 1
			FOR UPDATE`,
			sessionID, productID,
		).Scan(&id, &closed)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		// Exit measurements are written once per view.
		if closed.Valid {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE product_interactions SET duration = $1, scroll_depth = $2 WHERE id = $3`,
			duration, nullInt(scrollDepth), id,
		); err != nil {
			return err
		}
		updated = true
		return nil
	})
	if err != nil {
		return false, apperrors.NewInternalError("failed to update view on page exit", err)
	}
	return updated, nil
}

// ListRecentByUser returns the user's latest interactions, newest first.
func (a *InteractionAdapter) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*entities.ProductInteraction, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, session_id, product_id, interaction_type, duration, scroll_depth, metadata, created_at
		FROM product_interactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var rows []interactionRow
	if err := a.client.DBX().SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, apperrors.NewInternalError("failed to list user interactions", err)
	}

	interactions := make([]*entities.ProductInteraction, 0, len(rows))
	for i := range rows {
		interactions = append(interactions, rows[i].toEntity())
	}
	return interactions, nil
}

// TrendingProducts counts views per product since the given time.
func (a *InteractionAdapter) TrendingProducts(ctx context.Context, since time.Time, limit int) ([]*entities.TrendingProduct, error) {
	if limit <= 0 {
		limit = 10
	}

	query, args, err := a.db.From(interactionsTable).
		Select(goqu.C("product_id"), goqu.COUNT("*").As("views")).
		Where(
			goqu.C("interaction_type").Eq(string(entities.InteractionView)),
			goqu.C("created_at").Gte(since),
		).
		GroupBy(goqu.C("product_id")).
		Order(goqu.I("views").Desc(), goqu.C("product_id").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build trending query", err)
	}

	trending := []*entities.TrendingProduct{}
	if err := a.client.DBX().SelectContext(ctx, &trending, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to get trending products", err)
	}
	return trending, nil
}

// CountCartActivity returns cart-add and purchase totals since the given time.
func (a *InteractionAdapter) CountCartActivity(ctx context.Context, since time.Time) (*entities.InteractionCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE interaction_type = 'cart_add') AS cart_adds,
			COUNT(*) FILTER (WHERE interaction_type = 'purchase') AS purchases
		FROM product_interactions
		WHERE created_at >= $1
	`

	counts := &entities.InteractionCounts{}
	if err := a.client.DBX().GetContext(ctx, counts, query, since); err != nil {
		return nil, apperrors.NewInternalError("failed to count cart activity", err)
	}
	return counts, nil
}
