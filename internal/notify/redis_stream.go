package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/estate-ops/internal/events"
)

// DefaultEventChannel is the pub/sub channel external consumers subscribe to.
const DefaultEventChannel = "estate.events"

// RedisEventPublisher mirrors lifecycle events onto a redis pub/sub channel
// for out-of-process consumers (dashboards, integrations). Best effort: a
// publish failure is logged and never fails the originating operation.
type RedisEventPublisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisEventPublisher builds the publisher. An empty channel selects the
// default.
func NewRedisEventPublisher(client *redis.Client, channel string, logger *zap.Logger) *RedisEventPublisher {
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &RedisEventPublisher{client: client, channel: channel, logger: logger}
}

// Register subscribes the publisher to every lifecycle event kind.
func (p *RedisEventPublisher) Register(dispatcher events.Dispatcher) {
	for _, eventType := range []events.EventType{
		events.EventRequestCreated,
		events.EventStatusChanged,
		events.EventRequestAssigned,
		events.EventRequestOverdue,
	} {
		dispatcher.Subscribe(eventType, p.Handle)
	}
}

// Handle publishes one event to the channel.
func (p *RedisEventPublisher) Handle(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.logger.Warn("event publish to redis failed",
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
	return nil
}
