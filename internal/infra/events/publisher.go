// Package events fans deal events out to automation consumers over Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AnsKM/dealflow-crm/internal/domain"
	"github.com/AnsKM/dealflow-crm/internal/infra/observability"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher publishes JSON-encoded events on a single channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewRedisPublisher creates a publisher for channel.
func NewRedisPublisher(rdb *redis.Client, channel string, metrics *observability.Metrics, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel, metrics: metrics, logger: logger}
}

// Publish sends event to every current subscriber.
func (p *RedisPublisher) Publish(ctx context.Context, event *domain.WebhookEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	receivers, err := p.rdb.Publish(ctx, p.channel, raw).Result()
	if err != nil {
		p.metrics.IncrEventPublished(event.Event, "error")
		return &domain.ErrExternalService{Service: "redis", Err: err}
	}

	p.metrics.IncrEventPublished(event.Event, "ok")
	p.logger.Debug("event published",
		zap.String("event", event.Event),
		zap.String("channel", p.channel),
		zap.Int64("receivers", receivers),
	)
	return nil
}

// Subscribe delivers decoded events from channel to handle until ctx is done.
// It returns once the subscription is confirmed.
func Subscribe(ctx context.Context, rdb *redis.Client, channel string, logger *zap.Logger, handle func(domain.WebhookEvent)) error {
	sub := rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var ev domain.WebhookEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					logger.Warn("bad event payload", zap.Error(err))
					continue
				}
				handle(ev)
			}
		}
	}()
	return nil
}

// LogPublisher only logs events. Used when no Redis is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a publisher that writes events to logger.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event *domain.WebhookEvent) error {
	p.logger.Info("deal event",
		zap.String("event", event.Event),
		zap.String("tenant_id", event.TenantID),
		zap.String("deal_id", event.DealID),
	)
	return nil
}
