package answer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mcoot/livequiz/internal/dependencies/clock"
	"github.com/mcoot/livequiz/internal/model"
	"github.com/mcoot/livequiz/internal/services/broadcast"
	"github.com/mcoot/livequiz/internal/storage"
)

// Advancer triggers an early transition out of a round that started at expected
type Advancer interface {
	Advance(ctx context.Context, code model.SessionCode, expected time.Time) error
}

// Service ingests and scores answer submissions
type Service struct {
	storage     storage.SessionStore
	advancer    Advancer
	broadcaster *broadcast.Broadcaster
	clock       clock.Clock
	logger      *slog.Logger
}

// New creates a new answer Service
func New(
	storage storage.SessionStore,
	advancer Advancer,
	broadcaster *broadcast.Broadcaster,
	clock clock.Clock,
	logger *slog.Logger,
) *Service {
	return &Service{
		storage:     storage,
		advancer:    advancer,
		broadcaster: broadcaster,
		clock:       clock,
		logger:      logger.With(slog.String("component", "answer")),
	}
}

// Score returns the points for a correct answer given the remaining-correct counter after
// decrementing it and the roster size: max(remaining, 0) + ceil(roster/2).
func Score(remaining int64, roster int) int {
	if remaining < 0 {
		remaining = 0
	}
	return int(remaining) + (roster+1)/2
}

// Submit records the player's answer to the open question.
// If key is set it must match the option at optionIndex.
func (s *Service) Submit(ctx context.Context, code model.SessionCode, playerID model.PlayerID, optionIndex int, key model.OptionKey) (*model.Answer, error) {
	session, err := s.storage.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if !session.InQuestion() {
		return nil, model.ErrRoundNotOpen
	}
	q := session.Round.QuestionIndex

	if _, err := s.storage.GetPlayer(ctx, code, playerID); err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) {
			return nil, model.ErrNotInSession
		}
		return nil, err
	}

	existing, err := s.storage.GetAnswer(ctx, code, q, playerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, model.ErrAlreadyAnswered
	}

	questions, err := s.storage.GetQuestions(ctx, code)
	if err != nil {
		return nil, err
	}
	if q < 0 || q >= len(questions) {
		return nil, model.ErrRoundNotOpen
	}
	question := questions[q]
	option, ok := question.OptionAt(optionIndex)
	if !ok || (key != "" && key != option.Key) {
		return nil, model.ErrInvalidOption
	}

	answer := &model.Answer{
		QuestionIndex: q,
		OptionIndex:   optionIndex,
		Key:           option.Key,
		AnsweredAt:    s.clock.Now().UTC(),
	}

	correct := option.Key == question.CorrectKey
	if correct {
		roster, err := s.storage.CountPlayers(ctx, code)
		if err != nil {
			return nil, err
		}
		remaining, err := s.storage.DecrRemaining(ctx, code, q)
		if err != nil {
			return nil, err
		}
		answer.Score = Score(remaining, roster)
	}

	result, err := s.storage.RecordAnswer(ctx, code, playerID, answer)
	if err != nil || !result.Written {
		// Give back the bonus slot this submission claimed
		if correct {
			if incErr := s.storage.IncrRemaining(ctx, code, q); incErr != nil {
				s.logger.Error("failed to restore remaining counter",
					slog.String("session", string(code)),
					slog.Int("question", q),
					slog.String("error", incErr.Error()))
			}
		}
		if err != nil {
			return nil, err
		}
		return nil, model.ErrAlreadyAnswered
	}

	s.logger.Info("answer recorded",
		slog.String("session", string(code)),
		slog.String("player_id", string(playerID)),
		slog.Int("question", q),
		slog.Bool("correct", correct),
		slog.Int("score", answer.Score))

	s.broadcaster.PublishProgress(ctx, code, q)

	if result.AllAnswered {
		if err := s.advancer.Advance(ctx, code, session.Round.StartedAt); err != nil {
			s.logger.Error("early transition failed",
				slog.String("session", string(code)),
				slog.Int("question", q),
				slog.String("error", err.Error()))
		}
	}

	return answer, nil
}
