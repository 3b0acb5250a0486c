package redis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/livequiz/internal/bus"
)

// Channel prefix for all bus topics
const channelPrefix = "livequiz:bus:"

// Bus publishes and subscribes over Redis pub/sub so several processes can share topics
type Bus struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure Bus implements the interface
var _ bus.Bus = (*Bus)(nil)

// New creates a bus on an existing client
func New(client *redis.Client, logger *slog.Logger) *Bus {
	return &Bus{
		client: client,
		logger: logger.With(slog.String("component", "redis-bus")),
	}
}

func channel(topic string) string {
	return channelPrefix + topic
}

// Publish sends payload to every subscriber of topic in any process
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, channel(topic), payload).Err()
}

// Subscribe starts a goroutine delivering messages on topic to handler until the subscription is closed
func (b *Bus) Subscribe(ctx context.Context, topic string, handler bus.Handler) (bus.Subscription, error) {
	ps := b.client.Subscribe(ctx, channel(topic))

	// Wait for the subscription to be confirmed so no publish after return is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &subscription{ps: ps, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for msg := range ps.Channel() {
			handler(context.Background(), []byte(msg.Payload))
		}
		b.logger.Debug("redis bus subscription ended", slog.String("topic", topic))
	}()

	b.logger.Debug("redis bus subscriber registered", slog.String("topic", topic))
	return sub, nil
}

type subscription struct {
	ps   *redis.PubSub
	done chan struct{}
}

// Close unsubscribes and waits for in-flight deliveries to finish
func (s *subscription) Close() error {
	err := s.ps.Close()
	<-s.done
	return err
}
