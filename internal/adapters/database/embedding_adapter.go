package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/zatekoja/productsearch/internal/domain/entities"
	"github.com/zatekoja/productsearch/internal/domain/repositories"
	"github.com/zatekoja/productsearch/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/productsearch/pkg/errors"
)

const embeddingsTable = "product_embeddings"

// EmbeddingAdapter stores product vectors in a pgvector column.
type EmbeddingAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewEmbeddingAdapter creates a new embedding adapter.
func NewEmbeddingAdapter(client *postgres.Client) repositories.EmbeddingRepository {
	return &EmbeddingAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Upsert writes the product's vector, replacing any existing one. The unique
// product_id constraint keeps one row per product under concurrent writers.
func (a *EmbeddingAdapter) Upsert(ctx context.Context, embedding *entities.ProductEmbedding) error {
	if embedding == nil || embedding.ProductID == "" {
		return apperrors.NewValidationError("embedding product id is required")
	}
	if len(embedding.Vector) == 0 {
		return apperrors.NewValidationError("embedding vector is empty")
	}

	now := time.Now().UTC()
	if embedding.ID == "" {
		embedding.ID = uuid.New().String()
	}
	if embedding.CreatedAt.IsZero() {
		embedding.CreatedAt = now
	}
	embedding.UpdatedAt = now

	record := goqu.Record{
		"id":            embedding.ID,
		"product_id":    embedding.ProductID,
		"embedding":     pgvector.NewVector(embedding.Vector),
		"model_version": embedding.ModelVersion,
		"content_hash":  nullString(embedding.ContentHash),
		"created_at":    embedding.CreatedAt,
		"updated_at":    embedding.UpdatedAt,
	}

	query, args, err := a.db.Insert(embeddingsTable).
		Rows(record).
		OnConflict(goqu.DoUpdate("product_id", goqu.Record{
			"embedding":     goqu.L("EXCLUDED.embedding"),
			"model_version": goqu.L("EXCLUDED.model_version"),
			"content_hash":  goqu.L("EXCLUDED.content_hash"),
			"updated_at":    goqu.L("EXCLUDED.updated_at"),
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build embedding upsert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert embedding", err)
	}
	return nil
}

// GetByProductID returns the product's vector or a not-found error.
func (a *EmbeddingAdapter) GetByProductID(ctx context.Context, productID string) (*entities.ProductEmbedding, error) {
	query := `
		SELECT id, product_id, embedding, model_version, content_hash, created_at, updated_at
		FROM product_embeddings
		WHERE product_id = $1
	`

	var (
		e      entities.ProductEmbedding
		vector pgvector.Vector
		hash   sql.NullString
	)
	err := a.client.DB().QueryRowContext(ctx, query, productID).Scan(
		&e.ID, &e.ProductID, &vector, &e.ModelVersion, &hash, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("embedding for product %s not found", productID))
		}
		return nil, apperrors.NewInternalError("failed to get embedding", err)
	}

	e.Vector = vector.Slice()
	e.ContentHash = hash.String
	return &e, nil
}

// ListAll returns every stored vector except excludeProductID's.
func (a *EmbeddingAdapter) ListAll(ctx context.Context, excludeProductID string) ([]*entities.ProductEmbedding, error) {
	ds := a.db.From(embeddingsTable).
		Select("product_id", "embedding", "model_version").
		Order(goqu.C("product_id").Asc())
	if excludeProductID != "" {
		ds = ds.Where(goqu.C("product_id").Neq(excludeProductID))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build embedding list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list embeddings", err)
	}
	defer rows.Close()

	embeddings := []*entities.ProductEmbedding{}
	for rows.Next() {
		var (
			e      entities.ProductEmbedding
			vector pgvector.Vector
		)
		if err := rows.Scan(&e.ProductID, &vector, &e.ModelVersion); err != nil {
			return nil, apperrors.NewInternalError("failed to scan embedding", err)
		}
		e.Vector = vector.Slice()
		embeddings = append(embeddings, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate embeddings", err)
	}
	return embeddings, nil
}

// ListHashes maps product id to the stored content hash.
func (a *EmbeddingAdapter) ListHashes(ctx context.Context) (map[string]string, error) {
	rows, err := a.client.DB().QueryContext(ctx, `SELECT product_id, content_hash FROM product_embeddings`)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list embedding hashes", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var (
			productID string
			hash      sql.NullString
		)
		if err := rows.Scan(&productID, &hash); err != nil {
			return nil, apperrors.NewInternalError("failed to scan embedding hash", err)
		}
		hashes[productID] = hash.String
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate embedding hashes", err)
	}
	return hashes, nil
}

// Count returns the number of stored vectors.
func (a *EmbeddingAdapter) Count(ctx context.Context) (int, error) {
	var count int
	if err := a.client.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM product_embeddings`).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count embeddings", err)
	}
	return count, nil
}
