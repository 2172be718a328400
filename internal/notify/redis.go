package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisSink publishes events on a pub/sub channel so every API instance sees them
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink creates a sink publishing on channel
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

func (r *RedisSink) Name() string { return "redis" }

func (r *RedisSink) Deliver(ctx context.Context, evt Event) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, b).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// RedisRelay subscribes to the pub/sub channel and hands events to a local sink,
// typically the websocket hub of this instance.
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   Sink
}

// NewRedisRelay creates a relay from channel into local
func NewRedisRelay(client *redis.Client, channel string, local Sink) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, local: local}
}

// Run blocks until ctx is cancelled
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	log.Info().Str("channel", r.channel).Msg("Redis relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.relay(ctx, msg.Payload)
		}
	}
}

func (r *RedisRelay) relay(ctx context.Context, payload string) {
	var evt Event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		log.Error().Err(err).Msg("Failed to decode relayed event")
		return
	}
	if err := r.local.Deliver(ctx, evt); err != nil {
		log.Error().Err(err).Str("event_id", evt.ID).Str("sink", r.local.Name()).Msg("Failed to relay event")
	}
}
