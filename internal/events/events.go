// Package events carries post-commit notifications out of the checkout
// path. Delivery is best effort: a subscriber or publisher failure is
// logged and never reaches the caller.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"tokokas/backend/internal/domain"
	"tokokas/backend/pkg/logger"
)

const publishTimeout = 5 * time.Second

type SaleSubscriber func(event domain.SaleCompleted)

// Bus fans a sale-completed event out to in-process subscribers and, when
// configured, publishes it on a redis channel for external consumers.
type Bus struct {
	mu          sync.RWMutex
	subscribers []SaleSubscriber

	redisClient *redis.Client
	channel     string
	log         *logger.Logger
}

func NewBus(log *logger.Logger) *Bus {
	return &Bus{log: log}
}

// WithRedis enables channel publishing. A nil client leaves the bus
// in-process only.
func (b *Bus) WithRedis(client *redis.Client, channel string) *Bus {
	b.redisClient = client
	b.channel = channel
	return b
}

func (b *Bus) Subscribe(fn SaleSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

// Publish must only be called after the sale has committed. It returns
// immediately; subscribers and the redis publish run on a separate
// goroutine, in subscription order for a given event.
func (b *Bus) Publish(_ context.Context, event domain.SaleCompleted) {
	b.mu.RLock()
	subscribers := make([]SaleSubscriber, len(b.subscribers))
	copy(subscribers, b.subscribers)
	b.mu.RUnlock()

	go b.dispatch(event, subscribers)
}

func (b *Bus) dispatch(event domain.SaleCompleted, subscribers []SaleSubscriber) {
	for _, fn := range subscribers {
		fn(event)
	}

	if b.redisClient == nil || b.channel == "" {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		b.log.Error().Err(err).Str("transaction_id", event.TransactionID).Msg("marshal sale event")
		return
	}
	// The request context that triggered the sale may already be done, so
	// the publish carries its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.redisClient.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.log.Warn().Err(err).
			Str("channel", b.channel).
			Str("transaction_id", event.TransactionID).
			Msg("publish sale event")
	}
}
