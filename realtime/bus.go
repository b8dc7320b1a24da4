package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Bus is a Redis pub/sub fan-out for change signals. Payloads carry no
// data; subscribers re-read their snapshot from the store on each signal,
// so every consumer holds its own immutable copy.
type Bus struct {
	client *redis.Client
	logger *slog.Logger
}

func NewBus(client *redis.Client, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		client: client,
		logger: logger,
	}
}

// Publish emits one change signal on the topic.
func (b *Bus) Publish(ctx context.Context, topic string) error {
	if err := b.client.Publish(ctx, topic, "1").Err(); err != nil {
		return fmt.Errorf("realtime: publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns a coalesced signal channel for the topic. Bursts of
// publishes collapse into a single pending signal, which is safe because
// consumers re-query full snapshots. The stop function releases the
// subscription and closes the channel.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan struct{}, func(), error) {
	sub := b.client.Subscribe(ctx, topic)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("realtime: subscribe %s: %w", topic, err)
	}

	msgs := sub.Channel()
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for range msgs {
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()

	stop := func() {
		if err := sub.Close(); err != nil {
			b.logger.WarnContext(ctx, "close subscription", "topic", topic, "error", err)
		}
	}
	return out, stop, nil
}
