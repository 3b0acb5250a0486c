package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mcoot/livequiz/internal/bus"
	"github.com/mcoot/livequiz/internal/model"
)

const (
	// DefaultPingPeriod is the time between keepalive comments
	DefaultPingPeriod = 30 * time.Second

	// Buffer size for outgoing messages
	sendBufferSize = 256
)

// Streamer relays bus topics to a client as server-sent events
type Streamer struct {
	bus        bus.Bus
	logger     *slog.Logger
	pingPeriod time.Duration
}

// New creates a new Streamer. A non-positive pingPeriod uses DefaultPingPeriod.
func New(b bus.Bus, logger *slog.Logger, pingPeriod time.Duration) *Streamer {
	if pingPeriod <= 0 {
		pingPeriod = DefaultPingPeriod
	}
	return &Streamer{
		bus:        b,
		logger:     logger.With(slog.String("component", "sse")),
		pingPeriod: pingPeriod,
	}
}

// Serve subscribes to topics and writes every event published on them until the client goes away
// or the session is closed.
func (s *Streamer) Serve(w http.ResponseWriter, r *http.Request, code model.SessionCode, playerID model.PlayerID, topics ...string) {
	// Check if SSE is supported
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	// The stream outlives the server's write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	ctx := r.Context()
	send := make(chan []byte, sendBufferSize)
	deliver := func(_ context.Context, payload []byte) {
		select {
		case send <- payload:
		default:
			s.logger.Warn("sse message dropped - client buffer full",
				slog.String("session", string(code)),
				slog.String("player_id", string(playerID)))
		}
	}

	subs := make([]bus.Subscription, 0, len(topics))
	defer func() {
		for _, sub := range subs {
			_ = sub.Close()
		}
	}()
	for _, topic := range topics {
		sub, err := s.bus.Subscribe(ctx, topic, deliver)
		if err != nil {
			s.logger.Error("sse subscribe failed",
				slog.String("topic", topic),
				slog.String("error", err.Error()))
			http.Error(w, "Subscription failed", http.StatusInternalServerError)
			return
		}
		subs = append(subs, sub)
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	connectedAt := time.Now()
	s.logger.Info("sse client connected",
		slog.String("session", string(code)),
		slog.String("player_id", string(playerID)))
	defer func() {
		s.logger.Info("sse client disconnected",
			slog.String("session", string(code)),
			slog.String("player_id", string(playerID)),
			slog.Duration("connection_duration", time.Since(connectedAt)))
	}()

	// Send initial connection event
	_, _ = w.Write(formatMessage("connected", `{"status":"connected"}`))
	flusher.Flush()

	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-send:
			eventType := typeOf(payload)
			if _, err := w.Write(formatMessage(string(eventType), string(payload))); err != nil {
				return
			}
			flusher.Flush()
			if eventType == model.EventSessionClosed {
				return
			}

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-ctx.Done():
			return
		}
	}
}

// typeOf reads the event type from a published envelope
func typeOf(payload []byte) model.EventType {
	var envelope struct {
		Type model.EventType `json:"type"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Type == "" {
		return "message"
	}
	return envelope.Type
}

// formatMessage formats an SSE message with event name and data.
// Each line of data gets its own "data: " prefix.
func formatMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: " + eventName + "\n")
	for _, line := range splitLines(data) {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// splitLines splits a string into lines, handling various line endings
func splitLines(s string) []string {
	lines := strings.Split(strings.ReplaceAll(s, "\r", ""), "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
