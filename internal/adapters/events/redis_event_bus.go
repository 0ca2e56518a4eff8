package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/zatekoja/productsearch/internal/domain/entities"
	"github.com/zatekoja/productsearch/internal/domain/providers"
	redisclient "github.com/zatekoja/productsearch/internal/infrastructure/clients/redis"
	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
)

const subscriberBuffer = 100

type channelSubscription struct {
	pubsub      *redis.PubSub
	subscribers map[chan *entities.InteractionEvent]struct{}
}

// RedisEventBus fans interaction events out over Redis Pub/Sub. One Redis
// subscription per channel is shared by all local subscribers.
type RedisEventBus struct {
	client   *redisclient.Client
	channels map[string]*channelSubscription
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:   client,
		channels: make(map[string]*channelSubscription),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Publish publishes an event to all subscribers
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.InteractionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe returns a buffered channel of events. The subscription ends when
// ctx is cancelled.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.InteractionEvent, error) {
	b.mu.Lock()
	sub, exists := b.channels[channel]
	if !exists {
		sub = &channelSubscription{
			pubsub:      b.client.Client().Subscribe(b.ctx, channel),
			subscribers: make(map[chan *entities.InteractionEvent]struct{}),
		}
		b.channels[channel] = sub
		go b.receive(channel, sub)
	}

	eventChan := make(chan *entities.InteractionEvent, subscriberBuffer)
	sub.subscribers[eventChan] = struct{}{}
	count := len(sub.subscribers)
	b.mu.Unlock()

	observability.GetLogger().Debug().Str("channel", channel).Int("subscribers", count).Msg("subscribed to channel")

	go func() {
		select {
		case <-ctx.Done():
		case <-b.ctx.Done():
		}
		b.removeSubscriber(channel, eventChan)
	}()

	return eventChan, nil
}

func (b *RedisEventBus) receive(channel string, sub *channelSubscription) {
	logger := observability.GetLogger().With().Str("channel", channel).Logger()
	defer func() {
		if err := b.closeChannel(channel); err != nil {
			logger.Warn().Err(err).Msg("failed to close channel")
		}
	}()

	messages := sub.pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var event entities.InteractionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Warn().Err(err).Msg("failed to unmarshal interaction event")
				continue
			}

			b.mu.RLock()
			for subscriber := range sub.subscribers {
				select {
				case subscriber <- &event:
				default:
					logger.Warn().Str("event_id", event.ID).Msg("subscriber buffer full, dropping event")
				}
			}
			b.mu.RUnlock()
		}
	}
}

func (b *RedisEventBus) removeSubscriber(channel string, eventChan chan *entities.InteractionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.channels[channel]
	if !ok {
		return
	}
	if _, ok := sub.subscribers[eventChan]; !ok {
		return
	}

	delete(sub.subscribers, eventChan)
	close(eventChan)

	if len(sub.subscribers) == 0 {
		_ = sub.pubsub.Close()
		delete(b.channels, channel)
	}
}

// closeChannel closes every local subscriber and the Redis subscription.
func (b *RedisEventBus) closeChannel(channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.channels[channel]
	if !ok {
		return nil
	}
	for subscriber := range sub.subscribers {
		close(subscriber)
	}
	delete(b.channels, channel)

	if err := sub.pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close subscription %s: %w", channel, err)
	}
	return nil
}

// Unsubscribe unsubscribes from a channel
func (b *RedisEventBus) Unsubscribe(ctx context.Context, channel string) error {
	return b.closeChannel(channel)
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.cancel()

	b.mu.RLock()
	channels := make([]string, 0, len(b.channels))
	for channel := range b.channels {
		channels = append(channels, channel)
	}
	b.mu.RUnlock()

	var errs []error
	for _, channel := range channels {
		if err := b.closeChannel(channel); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
