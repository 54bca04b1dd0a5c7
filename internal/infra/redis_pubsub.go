package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Broadcaster receives relayed messages; WsManager is one.
type Broadcaster interface {
	BroadcastToAll(data interface{})
}

// ActivityRelay shares activity messages between API instances over a Redis
// channel, so every instance's websocket clients see every event.
type ActivityRelay struct {
	rdb     *redis.Client
	channel string
}

func NewActivityRelay(rdb *redis.Client, channel string) *ActivityRelay {
	return &ActivityRelay{rdb: rdb, channel: channel}
}

// Publish encodes msg as JSON and publishes it on the relay channel.
func (r *ActivityRelay) Publish(ctx context.Context, msg interface{}) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode activity message: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish activity message: %w", err)
	}
	return nil
}

// Start subscribes to the relay channel and forwards every payload to
// notifier until ctx is cancelled. It returns once the subscription is
// confirmed.
func (r *ActivityRelay) Start(ctx context.Context, notifier Broadcaster) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)

	// Wait for confirmation that subscription is created
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}

	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		slog.Info("activity relay started", "channel", r.channel)
		for {
			select {
			case <-ctx.Done():
				slog.Info("activity relay stopped", "channel", r.channel)
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.forward(notifier, msg.Payload)
			}
		}
	}()
	return nil
}

func (r *ActivityRelay) forward(notifier Broadcaster, payload string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("activity relay: notifier panicked", "panic", rec)
		}
	}()
	if !json.Valid([]byte(payload)) {
		slog.Warn("activity relay: dropping invalid payload", "channel", r.channel)
		return
	}
	notifier.BroadcastToAll(json.RawMessage(payload))
}
