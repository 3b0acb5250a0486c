package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/mcoot/livequiz/internal/bus"
	"github.com/mcoot/livequiz/internal/model"
)

// RecordedEvent is an event captured from the bus with its payload left encoded
type RecordedEvent struct {
	Type        model.EventType   `json:"type"`
	SessionCode model.SessionCode `json:"sessionCode"`
	Payload     json.RawMessage   `json:"payload"`
}

// Decode unmarshals the payload into v
func (e RecordedEvent) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// EventRecorder captures every event published on a set of topics
type EventRecorder struct {
	mu     sync.Mutex
	events map[string][]RecordedEvent
}

// NewEventRecorder subscribes to topics; subscriptions are closed when the test ends
func NewEventRecorder(t testing.TB, b bus.Bus, topics ...string) *EventRecorder {
	t.Helper()
	r := &EventRecorder{events: make(map[string][]RecordedEvent)}
	for _, topic := range topics {
		topic := topic
		sub, err := b.Subscribe(context.Background(), topic, func(ctx context.Context, payload []byte) {
			var ev RecordedEvent
			if err := json.Unmarshal(payload, &ev); err != nil {
				t.Errorf("undecodable event on %s: %v", topic, err)
				return
			}
			r.mu.Lock()
			r.events[topic] = append(r.events[topic], ev)
			r.mu.Unlock()
		})
		if err != nil {
			t.Fatalf("subscribe %s: %v", topic, err)
		}
		t.Cleanup(func() { _ = sub.Close() })
	}
	return r
}

// Events returns the events captured on topic, oldest first
func (r *EventRecorder) Events(topic string) []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedEvent(nil), r.events[topic]...)
}

// Types returns the event types captured on topic, oldest first
func (r *EventRecorder) Types(topic string) []model.EventType {
	events := r.Events(topic)
	types := make([]model.EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

// Last returns the most recent event on topic
func (r *EventRecorder) Last(topic string) (RecordedEvent, bool) {
	events := r.Events(topic)
	if len(events) == 0 {
		return RecordedEvent{}, false
	}
	return events[len(events)-1], true
}

// Reset discards everything captured so far
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = make(map[string][]RecordedEvent)
}
