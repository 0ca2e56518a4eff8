package services_test

import (
	"context"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/productsearch/internal/application/services"
	"github.com/zatekoja/productsearch/internal/domain/entities"
	"github.com/zatekoja/productsearch/internal/domain/providers"
)

// MockCacheProvider for testing
type MockCacheProvider struct {
	mu      sync.RWMutex
	data    map[string][]byte
	deleted []string
	sets    int
}

func NewMockCacheProvider() *MockCacheProvider {
	return &MockCacheProvider{
		data:    make(map[string][]byte),
		deleted: make([]string, 0),
	}
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if val, ok := m.data[key]; ok {
		return val, nil
	}
	return nil, nil
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *MockCacheProvider) DeletePattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.data, key)
			m.deleted = append(m.deleted, key)
		}
	}
	return nil
}

func (m *MockCacheProvider) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok
}

func (m *MockCacheProvider) DeletedKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.deleted...)
}

// MockEventBus for testing
type MockEventBus struct {
	mu          sync.Mutex
	subscribers map[string][]chan *entities.InteractionEvent
	published   []*entities.InteractionEvent
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{
		subscribers: make(map[string][]chan *entities.InteractionEvent),
		published:   make([]*entities.InteractionEvent, 0),
	}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.InteractionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, event)
	for _, ch := range m.subscribers[channel] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.InteractionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *entities.InteractionEvent, 10)
	m.subscribers[channel] = append(m.subscribers[channel], ch)
	return ch, nil
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers[channel] {
		close(ch)
	}
	delete(m.subscribers, channel)
	return nil
}

func (m *MockEventBus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for channel, channels := range m.subscribers {
		for _, ch := range channels {
			close(ch)
		}
		delete(m.subscribers, channel)
	}
	return nil
}

func (m *MockEventBus) Published() []*entities.InteractionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entities.InteractionEvent(nil), m.published...)
}

func (m *MockEventBus) SubscriberCount(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers[channel])
}

func TestCacheInvalidationService_Start(t *testing.T) {
	cache := NewMockCacheProvider()
	eventBus := NewMockEventBus()
	service := services.NewCacheInvalidationService(cache, eventBus)

	require.NoError(t, service.Start())
	assert.Equal(t, 1, eventBus.SubscriberCount(providers.EventChannelInteractions))

	service.Stop()
}

func TestCacheInvalidationService_StopWithoutStart(t *testing.T) {
	service := services.NewCacheInvalidationService(NewMockCacheProvider(), NewMockEventBus())
	service.Stop()
}

func TestCacheInvalidationService_InvalidatesProfileOnInteraction(t *testing.T) {
	cache := NewMockCacheProvider()
	eventBus := NewMockEventBus()
	service := services.NewCacheInvalidationService(cache, eventBus)
	require.NoError(t, service.Start())
	defer service.Stop()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, services.ProfileCacheKey("user-1"), []byte("{}"), 300))
	require.NoError(t, cache.Set(ctx, services.ProfileCacheKey("user-2"), []byte("{}"), 300))

	require.NoError(t, eventBus.Publish(ctx, providers.EventChannelInteractions, &entities.InteractionEvent{
		ID:        "evt-1",
		UserID:    "user-1",
		SessionID: "sess-1",
		ProductID: "p1",
		Type:      entities.InteractionPurchase,
		Timestamp: time.Now(),
	}))

	assert.Eventually(t, func() bool {
		return !cache.Has(services.ProfileCacheKey("user-1"))
	}, time.Second, 10*time.Millisecond)
	assert.True(t, cache.Has(services.ProfileCacheKey("user-2")))
}

func TestCacheInvalidationService_IgnoresAnonymousEvents(t *testing.T) {
	cache := NewMockCacheProvider()
	eventBus := NewMockEventBus()
	service := services.NewCacheInvalidationService(cache, eventBus)
	require.NoError(t, service.Start())

	ctx := context.Background()
	require.NoError(t, eventBus.Publish(ctx, providers.EventChannelInteractions, &entities.InteractionEvent{
		ID:        "evt-2",
		SessionID: "sess-anon",
		ProductID: "p1",
		Type:      entities.InteractionView,
	}))

	service.Stop()
	assert.Empty(t, cache.DeletedKeys())
}

func TestCacheInvalidationService_InvalidateSearchCaches(t *testing.T) {
	cache := NewMockCacheProvider()
	service := services.NewCacheInvalidationService(cache, NewMockEventBus())

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "suggest:5:filter", []byte("[]"), 300))
	require.NoError(t, cache.Set(ctx, services.ProfileCacheKey("user-1"), []byte("{}"), 300))
	require.NoError(t, cache.Set(ctx, "embedding:query:abc", []byte("[]"), 300))

	require.NoError(t, service.InvalidateSearchCaches(ctx))

	assert.False(t, cache.Has("suggest:5:filter"))
	assert.False(t, cache.Has(services.ProfileCacheKey("user-1")))
	assert.True(t, cache.Has("embedding:query:abc"))
}
