package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/AnsKM/dealflow-crm/internal/domain"
	"github.com/AnsKM/dealflow-crm/internal/infra/events"
	"github.com/AnsKM/dealflow-crm/internal/infra/observability"
	"github.com/AnsKM/dealflow-crm/internal/port"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	_ port.EventPublisher = (*events.RedisPublisher)(nil)
	_ port.EventPublisher = (*events.LogPublisher)(nil)
)

func TestRedisPublisher_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan domain.WebhookEvent, 1)
	require.NoError(t, events.Subscribe(ctx, rdb, "deal-events", zap.NewNop(), func(ev domain.WebhookEvent) {
		received <- ev
	}))

	pub := events.NewRedisPublisher(rdb, "deal-events", observability.NewMetrics(), zap.NewNop())
	score := 12
	err := pub.Publish(ctx, &domain.WebhookEvent{
		Event:       domain.EventDealHealthAlert,
		DealID:      "deal-1",
		TenantID:    "tenant-1",
		Timestamp:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		HealthScore: &score,
		AlertLevel:  domain.AlertCritical,
	})
	require.NoError(t, err)

	select {
	case ev := <-received:
		assert.Equal(t, domain.EventDealHealthAlert, ev.Event)
		assert.Equal(t, "deal-1", ev.DealID)
		require.NotNil(t, ev.HealthScore)
		assert.Equal(t, 12, *ev.HealthScore)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestRedisPublisher_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	pub := events.NewRedisPublisher(rdb, "deal-events", observability.NewMetrics(), zap.NewNop())
	err := pub.Publish(context.Background(), &domain.WebhookEvent{Event: domain.EventDealCreated})

	var extErr *domain.ErrExternalService
	assert.ErrorAs(t, err, &extErr)
}

func TestLogPublisher(t *testing.T) {
	pub := events.NewLogPublisher(zap.NewNop())
	assert.NoError(t, pub.Publish(context.Background(), &domain.WebhookEvent{Event: domain.EventDealDeleted}))
}
