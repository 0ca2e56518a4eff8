package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/productsearch/internal/domain/entities"
)

// InteractionRepository is the append-mostly product interaction log.
type InteractionRepository interface {
	Create(ctx context.Context, interaction *entities.ProductInteraction) error

	// UpdateLatestView sets duration and scroll depth on the most recent view
	// for session and product. Returns false if no view exists.
	UpdateLatestView(ctx context.Context, sessionID, productID string, duration int, scrollDepth *int) (bool, error)

	ListRecentByUser(ctx context.Context, userID string, limit int) ([]*entities.ProductInteraction, error)
	TrendingProducts(ctx context.Context, since time.Time, limit int) ([]*entities.TrendingProduct, error)
	CountCartActivity(ctx context.Context, since time.Time) (*entities.InteractionCounts, error)
}

// SearchQueryRepository is the search log.
type SearchQueryRepository interface {
	Create(ctx context.Context, query *entities.SearchQuery) error

	// AttributeClick records click on the session's latest search if its text
	// matches, otherwise inserts a synthesized record. Returns true when an
	// existing record was updated.
	AttributeClick(ctx context.Context, click *entities.SearchClick) (bool, error)

	PopularQueries(ctx context.Context, fragment string, since time.Time, limit int) ([]string, error)
	TopKeywords(ctx context.Context, since time.Time, limit int) ([]*entities.KeywordStat, error)
	NoResultQueries(ctx context.Context, since time.Time, limit int) ([]*entities.NoResultQuery, error)
}
