package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/livequiz/internal/bus"
	"github.com/mcoot/livequiz/internal/dependencies/clock"
	"github.com/mcoot/livequiz/internal/model"
	"github.com/mcoot/livequiz/internal/storage"
)

// Broadcaster publishes session state and notices onto the bus.
// Failures are logged; a missed snapshot is repaired by the next one.
type Broadcaster struct {
	storage storage.SessionStore
	bus     bus.Bus
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a new Broadcaster
func New(storage storage.SessionStore, b bus.Bus, clock clock.Clock, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		storage: storage,
		bus:     b,
		clock:   clock,
		logger:  logger.With(slog.String("component", "broadcaster")),
	}
}

// Snapshot loads everything a session snapshot needs
func (b *Broadcaster) Snapshot(ctx context.Context, session *model.Session) (*SessionSnapshot, error) {
	var (
		host    *model.Host
		players []*model.Player
		scores  map[model.PlayerID]int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := b.storage.GetHost(gctx, session.Code)
		if err != nil {
			return err
		}
		host = h
		return nil
	})
	g.Go(func() error {
		p, err := b.storage.GetPlayers(gctx, session.Code)
		if err != nil {
			return err
		}
		players = p
		return nil
	})
	g.Go(func() error {
		sc, err := b.storage.GetScores(gctx, session.Code)
		if err != nil {
			return err
		}
		scores = sc
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return NewSessionSnapshot(session, host, players, scores), nil
}

// PublishSession broadcasts the session snapshot to every participant
func (b *Broadcaster) PublishSession(ctx context.Context, session *model.Session) {
	snap, err := b.Snapshot(ctx, session)
	if err != nil {
		b.logger.Error("failed to build session snapshot",
			slog.String("session", string(session.Code)),
			slog.String("error", err.Error()))
		return
	}
	b.publish(ctx, bus.SessionTopic(session.Code), model.EventSessionUpdated, session.Code, snap)
}

// PublishProgress sends the host-only answer snapshot for a question
func (b *Broadcaster) PublishProgress(ctx context.Context, code model.SessionCode, question int) {
	var (
		players []*model.Player
		answers map[model.PlayerID]*model.Answer
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := b.storage.GetPlayers(gctx, code)
		players = p
		return err
	})
	g.Go(func() error {
		a, err := b.storage.GetAnswers(gctx, code, question)
		answers = a
		return err
	})
	if err := g.Wait(); err != nil {
		b.logger.Error("failed to build answer progress",
			slog.String("session", string(code)),
			slog.Int("question", question),
			slog.String("error", err.Error()))
		return
	}

	b.publish(ctx, bus.HostTopic(code), model.EventAnswerProgress, code, NewAnswerProgress(question, players, answers))
}

// PublishClosed tells everyone in the session it has been closed
func (b *Broadcaster) PublishClosed(ctx context.Context, code model.SessionCode, message string) {
	b.publish(ctx, bus.SessionTopic(code), model.EventSessionClosed, code, model.NoticePayload{Message: message})
}

// NotifyKicked tells an evicted player they were removed
func (b *Broadcaster) NotifyKicked(ctx context.Context, code model.SessionCode, id model.PlayerID) {
	b.publish(ctx, bus.UserTopic(id), model.EventKicked, code, model.NoticePayload{Message: "You were removed from the session"})
}

// NotifyError sends a rejected command's reason to its caller only
func (b *Broadcaster) NotifyError(ctx context.Context, code model.SessionCode, id model.PlayerID, payload model.ErrorPayload) {
	b.publish(ctx, bus.UserTopic(id), model.EventError, code, payload)
}

// NotifyAnswerAck acknowledges a submit-answer to its sender
func (b *Broadcaster) NotifyAnswerAck(ctx context.Context, code model.SessionCode, id model.PlayerID, ack model.AnswerAckPayload) {
	b.publish(ctx, bus.UserTopic(id), model.EventAnswerAck, code, ack)
}

func (b *Broadcaster) publish(ctx context.Context, topic string, eventType model.EventType, code model.SessionCode, payload any) {
	data, err := json.Marshal(model.Event{
		Type:        eventType,
		Timestamp:   b.clock.Now().UTC(),
		SessionCode: code,
		Payload:     payload,
	})
	if err != nil {
		b.logger.Error("failed to encode event",
			slog.String("event", string(eventType)),
			slog.String("error", err.Error()))
		return
	}

	if err := b.bus.Publish(ctx, topic, data); err != nil {
		b.logger.Error("failed to publish event",
			slog.String("topic", topic),
			slog.String("event", string(eventType)),
			slog.String("error", err.Error()))
	}
}
