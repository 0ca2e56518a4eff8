package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/productsearch/internal/domain/entities"
	"github.com/zatekoja/productsearch/internal/domain/providers"
	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
)

const invalidationComponent = "cache_invalidation"

// CacheInvalidationService drops cached personalization profiles when new
// interactions arrive for a user.
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins listening for interaction events.
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelInteractions)
	if err != nil {
		return fmt.Errorf("failed to subscribe to interaction events: %w", err)
	}

	s.started = true
	go s.processEvents(eventChan)
	observability.ComponentLogger(s.ctx, invalidationComponent).Info().Msg("cache invalidation service started")
	return nil
}

// Stop stops the service and waits for the event loop to exit.
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	if s.started {
		<-s.done
	}
	observability.ComponentLogger(context.Background(), invalidationComponent).Info().Msg("cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.InteractionEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.InteractionEvent) {
	// Anonymous sessions have no cached profile.
	if event.UserID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.InvalidateProfile(ctx, event.UserID); err != nil {
		observability.ComponentLogger(ctx, invalidationComponent).Warn().Err(err).
			Str("user_id", event.UserID).
			Str("interaction_type", string(event.Type)).
			Msg("failed to invalidate profile cache")
	}
}

// InvalidateProfile removes a user's cached personalization profile.
func (s *CacheInvalidationService) InvalidateProfile(ctx context.Context, userID string) error {
	return s.cache.Delete(ctx, ProfileCacheKey(userID))
}

// InvalidateSearchCaches clears cached suggestions and every profile. Used
// after catalog reindexing.
func (s *CacheInvalidationService) InvalidateSearchCaches(ctx context.Context) error {
	patterns := []string{
		"suggest:*",
		profileCacheKeyPrefix + "*",
	}

	for _, pattern := range patterns {
		if err := s.cache.DeletePattern(ctx, pattern); err != nil {
			return fmt.Errorf("failed to invalidate pattern %s: %w", pattern, err)
		}
		observability.ComponentLogger(ctx, invalidationComponent).Info().Str("pattern", pattern).Msg("invalidated cache pattern")
	}
	return nil
}
