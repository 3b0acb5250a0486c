package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mcoot/livequiz/internal/bus"
)

// Bus is an in-process Bus.
// Handlers run on the publishing goroutine, in subscription order, and must not block.
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]*subscription
	logger *slog.Logger
}

type subscription struct {
	bus     *Bus
	topic   string
	handler bus.Handler
}

// Ensure Bus implements the interface
var _ bus.Bus = (*Bus)(nil)

// New creates an empty in-process bus
func New(logger *slog.Logger) *Bus {
	return &Bus{
		topics: make(map[string][]*subscription),
		logger: logger.With(slog.String("component", "bus")),
	}
}

// Publish delivers payload to every current subscriber of topic
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	subs := append([]*subscription(nil), b.topics[topic]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.handler(ctx, payload)
	}
	if len(subs) > 0 {
		b.logger.Debug("bus message delivered",
			slog.String("topic", topic),
			slog.Int("subscribers", len(subs)))
	}
	return nil
}

// Subscribe registers handler on topic until the subscription is closed
func (b *Bus) Subscribe(ctx context.Context, topic string, handler bus.Handler) (bus.Subscription, error) {
	sub := &subscription{bus: b, topic: topic, handler: handler}

	b.mu.Lock()
	b.topics[topic] = append(b.topics[topic], sub)
	count := len(b.topics[topic])
	b.mu.Unlock()

	b.logger.Debug("bus subscriber registered",
		slog.String("topic", topic),
		slog.Int("total_subscribers", count))
	return sub, nil
}

// SubscriberCount returns the number of subscribers on topic
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (s *subscription) Close() error {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[s.topic]
	for i, other := range subs {
		if other == s {
			b.topics[s.topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.topics[s.topic]) == 0 {
		delete(b.topics, s.topic)
	}
	return nil
}
