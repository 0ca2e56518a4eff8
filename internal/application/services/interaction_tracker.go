package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zatekoja/productsearch/internal/domain/entities"
	"github.com/zatekoja/productsearch/internal/domain/providers"
	"github.com/zatekoja/productsearch/internal/domain/repositories"
	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
	"github.com/zatekoja/productsearch/pkg/utils"
)

const (
	trackerComponent    = "interaction_tracker"
	defaultTrackTimeout = 5 * time.Second
)

// InteractionInput is a product interaction reported by a client.
type InteractionInput struct {
	UserID    string
	SessionID string
	ProductID string
	Metadata  entities.InteractionMetadata
}

// SearchInput is a search reported for the log.
type SearchInput struct {
	UserID       string
	SessionID    string
	Query        string
	ResultsCount int
}

// PageExitInput closes the most recent view of a product in a session.
type PageExitInput struct {
	SessionID   string
	ProductID   string
	Duration    int
	ScrollDepth *int
}

// InteractionTracker records interactions and searches. Every write runs in
// the background and failures are logged, never returned.
type InteractionTracker struct {
	interactions repositories.InteractionRepository
	searches     repositories.SearchQueryRepository
	eventBus     providers.EventBus
	metrics      *observability.Metrics
	timeout      time.Duration
	now          func() time.Time
	wg           sync.WaitGroup
}

// NewInteractionTracker creates a tracker. eventBus may be nil.
func NewInteractionTracker(
	interactions repositories.InteractionRepository,
	searches repositories.SearchQueryRepository,
	eventBus providers.EventBus,
	metrics *observability.Metrics,
) *InteractionTracker {
	return &InteractionTracker{
		interactions: interactions,
		searches:     searches,
		eventBus:     eventBus,
		metrics:      metrics,
		timeout:      defaultTrackTimeout,
		now:          time.Now,
	}
}

// Wait blocks until in-flight writes have finished.
func (t *InteractionTracker) Wait() {
	t.wg.Wait()
}

// track runs fn in the background with a fresh deadline. The caller's
// cancellation does not reach fn; its trace context does.
func (t *InteractionTracker) track(ctx context.Context, op string, fn func(context.Context) error) {
	logger := observability.ComponentLogger(ctx, trackerComponent)
	base := context.WithoutCancel(ctx)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Str("operation", op).Interface("panic", r).Msg("tracking panicked")
				observability.RecordTrackingError(base, t.metrics, op)
			}
		}()

		bgCtx, cancel := context.WithTimeout(base, t.timeout)
		defer cancel()

		if err := fn(bgCtx); err != nil {
			logger.Warn().Err(err).Str("operation", op).Msg("failed to track interaction")
			observability.RecordTrackingError(bgCtx, t.metrics, op)
		}
	}()
}

// TrackView records a product view.
func (t *InteractionTracker) TrackView(ctx context.Context, in InteractionInput) {
	t.record(ctx, entities.InteractionView, in)
}

// TrackCartAdd records a product added to the cart.
func (t *InteractionTracker) TrackCartAdd(ctx context.Context, in InteractionInput) {
	t.record(ctx, entities.InteractionCartAdd, in)
}

// TrackCartRemove records a product removed from the cart.
func (t *InteractionTracker) TrackCartRemove(ctx context.Context, in InteractionInput) {
	t.record(ctx, entities.InteractionCartRemove, in)
}

// TrackFavorite records a product marked as favorite.
func (t *InteractionTracker) TrackFavorite(ctx context.Context, in InteractionInput) {
	t.record(ctx, entities.InteractionFavorite, in)
}

// TrackPurchase records a purchased product.
func (t *InteractionTracker) TrackPurchase(ctx context.Context, in InteractionInput) {
	t.record(ctx, entities.InteractionPurchase, in)
}

func (t *InteractionTracker) record(ctx context.Context, typ entities.InteractionType, in InteractionInput) {
	op := "track_" + string(typ)
	t.track(ctx, op, func(ctx context.Context) error {
		if in.SessionID == "" || in.ProductID == "" {
			return fmt.Errorf("%s requires session and product ids", typ)
		}

		interaction := &entities.ProductInteraction{
			ID:        uuid.New().String(),
			UserID:    in.UserID,
			SessionID: in.SessionID,
			ProductID: in.ProductID,
			Type:      typ,
			Metadata:  in.Metadata.ForType(typ),
			CreatedAt: t.now().UTC(),
		}
		if err := t.interactions.Create(ctx, interaction); err != nil {
			return err
		}

		t.publish(ctx, interaction)
		return nil
	})
}

func (t *InteractionTracker) publish(ctx context.Context, interaction *entities.ProductInteraction) {
	if t.eventBus == nil {
		return
	}
	event := entities.NewInteractionEvent(interaction)
	if err := t.eventBus.Publish(ctx, providers.EventChannelInteractions, event); err != nil {
		observability.ComponentLogger(ctx, trackerComponent).Warn().Err(err).
			Str("interaction_id", interaction.ID).Msg("failed to publish interaction event")
	}
}

// TrackSearch logs a search with its result count. The query is stored in
// normalized form.
func (t *InteractionTracker) TrackSearch(ctx context.Context, in SearchInput) {
	t.track(ctx, "track_search", func(ctx context.Context) error {
		query := utils.NormalizeQuery(in.Query)
		if in.SessionID == "" || query == "" {
			return fmt.Errorf("search requires session id and query")
		}
		return t.searches.Create(ctx, &entities.SearchQuery{
			ID:             uuid.New().String(),
			UserID:         in.UserID,
			SessionID:      in.SessionID,
			Query:          query,
			ResultsCount:   in.ResultsCount,
			NoResultsFound: in.ResultsCount == 0,
			CreatedAt:      t.now().UTC(),
		})
	})
}

// TrackSearchClick attributes a result click to the session's latest search.
func (t *InteractionTracker) TrackSearchClick(ctx context.Context, click entities.SearchClick) {
	t.track(ctx, "track_search_click", func(ctx context.Context) error {
		click.Query = utils.NormalizeQuery(click.Query)
		if click.SessionID == "" || click.ProductID == "" || click.Query == "" {
			return fmt.Errorf("search click requires session, product and query")
		}
		if click.Position < 0 {
			return fmt.Errorf("invalid click position %d", click.Position)
		}

		updated, err := t.searches.AttributeClick(ctx, &click)
		if err != nil {
			return err
		}
		if !updated {
			observability.ComponentLogger(ctx, trackerComponent).Debug().
				Str("session_id", click.SessionID).
				Msg("no matching search, click logged as new search")
		}
		return nil
	})
}

// TrackPageExit fills in dwell time and scroll depth on the most recent view
// of the product in the session.
func (t *InteractionTracker) TrackPageExit(ctx context.Context, in PageExitInput) {
	t.track(ctx, "track_page_exit", func(ctx context.Context) error {
		if in.SessionID == "" || in.ProductID == "" {
			return fmt.Errorf("page exit requires session and product ids")
		}
		if in.Duration < 0 {
			return fmt.Errorf("invalid duration %d", in.Duration)
		}
		if in.ScrollDepth != nil && (*in.ScrollDepth < 0 || *in.ScrollDepth > 100) {
			return fmt.Errorf("scroll depth %d out of range", *in.ScrollDepth)
		}

		updated, err := t.interactions.UpdateLatestView(ctx, in.SessionID, in.ProductID, in.Duration, in.ScrollDepth)
		if err != nil {
			return err
		}
		if !updated {
			observability.ComponentLogger(ctx, trackerComponent).Debug().
				Str("session_id", in.SessionID).
				Str("product_id", in.ProductID).
				Msg("no view to close on page exit")
		}
		return nil
	})
}
