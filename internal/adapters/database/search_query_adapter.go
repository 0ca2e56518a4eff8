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

const searchQueriesTable = "search_queries"

// SearchQueryAdapter persists the search log in Postgres.
type SearchQueryAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSearchQueryAdapter creates a new search query adapter.
func NewSearchQueryAdapter(client *postgres.Client) repositories.SearchQueryRepository {
	return &SearchQueryAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

func (a *SearchQueryAdapter) insertSQL(q *entities.SearchQuery) (string, []interface{}, error) {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}

	record := goqu.Record{
		"id":                 q.ID,
		"user_id":            nullString(q.UserID),
		"session_id":         q.SessionID,
		"query":              q.Query,
		"results_count":      q.ResultsCount,
		"clicked_product_id": nullString(q.ClickedProductID),
		"click_position":     nullInt(q.ClickPosition),
		"no_results_found":   q.NoResultsFound,
		"created_at":         q.CreatedAt,
	}
	return a.db.Insert(searchQueriesTable).Rows(record).ToSQL()
}

// Create inserts a search log record.
func (a *SearchQueryAdapter) Create(ctx context.Context, q *entities.SearchQuery) error {
	if q == nil {
		return apperrors.NewValidationError("search query is nil")
	}

	query, args, err := a.insertSQL(q)
	if err != nil {
		return apperrors.NewInternalError("failed to build search query insert", err)
	}
	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to log search query", err)
	}
	return nil
}

// AttributeClick locks the session's latest search record. If its text
// matches and it has no click yet, the click is recorded on it. Otherwise a
// record is synthesized with an estimated result count of one.
func (a *SearchQueryAdapter) AttributeClick(ctx context.Context, click *entities.SearchClick) (bool, error) {
	if click == nil {
		return false, apperrors.NewValidationError("search click is nil")
	}

	updated := false
	err := a.client.WithTx(ctx, func(tx *sqlx.Tx) error {
		var (
			id        string
			text      string
			clickedID sql.NullString
		)
		err := tx.QueryRowxContext(ctx, `
			SELECT id, query, clicked_product_id FROM search_queries
			WHERE session_id = $1
			ORDER BY created_at DESC
			LIMIT 1
			FOR UPDATE`,
			click.SessionID,
		).Scan(&id, &text, &clickedID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if err == nil && text == click.Query && !clickedID.Valid {
			if _, err := tx.ExecContext(ctx,
				`UPDATE search_queries SET clicked_product_id = $1, click_position = $2 WHERE id = $3`,
				click.ProductID, click.Position, id,
			); err != nil {
				return err
			}
			updated = true
			return nil
		}

		position := click.Position
		synthesized := &entities.SearchQuery{
			UserID:           click.UserID,
			SessionID:        click.SessionID,
			Query:            click.Query,
			ResultsCount:     1,
			ClickedProductID: click.ProductID,
			ClickPosition:    &position,
		}
		query, args, err := a.insertSQL(synthesized)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return false, apperrors.NewInternalError("failed to attribute search click", err)
	}
	return updated, nil
}

// PopularQueries returns query texts containing fragment, most frequent first.
func (a *SearchQueryAdapter) PopularQueries(ctx context.Context, fragment string, since time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}

	query, args, err := a.db.From(searchQueriesTable).
		Select(goqu.C("query")).
		Where(
			goqu.C("created_at").Gte(since),
			foldedColumn("query").ILike(containsPattern(fragment)),
		).
		GroupBy(goqu.C("query")).
		Order(goqu.COUNT("*").Desc(), goqu.C("query").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build popular query", err)
	}

	queries := []string{}
	if err := a.client.DBX().SelectContext(ctx, &queries, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to get popular queries", err)
	}
	return queries, nil
}

// TopKeywords groups the search log by query text.
func (a *SearchQueryAdapter) TopKeywords(ctx context.Context, since time.Time, limit int) ([]*entities.KeywordStat, error) {
	if limit <= 0 {
		limit = 10
	}

	query, args, err := a.db.From(searchQueriesTable).
		Select(
			goqu.C("query"),
			goqu.COUNT("*").As("count"),
			goqu.L("COALESCE(AVG(results_count), 0)").As("avg_results"),
		).
		Where(goqu.C("created_at").Gte(since)).
		GroupBy(goqu.C("query")).
		Order(goqu.I("count").Desc(), goqu.C("query").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build top keywords query", err)
	}

	stats := []*entities.KeywordStat{}
	if err := a.client.DBX().SelectContext(ctx, &stats, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to get top keywords", err)
	}
	return stats, nil
}

// NoResultQueries groups searches that returned nothing.
func (a *SearchQueryAdapter) NoResultQueries(ctx context.Context, since time.Time, limit int) ([]*entities.NoResultQuery, error) {
	if limit <= 0 {
		limit = 10
	}

	query, args, err := a.db.From(searchQueriesTable).
		Select(goqu.C("query"), goqu.COUNT("*").As("count")).
		Where(
			goqu.C("created_at").Gte(since),
			goqu.C("no_results_found").IsTrue(),
		).
		GroupBy(goqu.C("query")).
		Order(goqu.I("count").Desc(), goqu.C("query").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build no-result query", err)
	}

	queries := []*entities.NoResultQuery{}
	if err := a.client.DBX().SelectContext(ctx, &queries, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to get no-result queries", err)
	}
	return queries, nil
}
