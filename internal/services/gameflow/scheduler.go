package gameflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/livequiz/internal/dependencies/clock"
	"github.com/mcoot/livequiz/internal/dependencies/random"
	"github.com/mcoot/livequiz/internal/model"
	"github.com/mcoot/livequiz/internal/services/broadcast"
	"github.com/mcoot/livequiz/internal/storage"
)

const (
	// DefaultRevealWindow is how long the answer key is shown after a question closes
	DefaultRevealWindow = 5 * time.Second
	// DefaultStartCountdown is the cooldown before the first question
	DefaultStartCountdown = 30 * time.Second
)

// Config holds the fixed round durations not covered by session settings
type Config struct {
	RevealWindow   time.Duration
	StartCountdown time.Duration
}

// DefaultConfig returns the standard round durations
func DefaultConfig() Config {
	return Config{
		RevealWindow:   DefaultRevealWindow,
		StartCountdown: DefaultStartCountdown,
	}
}

// Finalizer turns an ended session into durable results
type Finalizer interface {
	Finalize(ctx context.Context, session *model.Session) error
}

// Scheduler drives started sessions through their rounds.
// Each session has at most one pending timer, and every transition runs under the session's lock.
type Scheduler struct {
	storage     storage.SessionStore
	catalog     storage.QuizCatalog
	broadcaster *broadcast.Broadcaster
	finalizer   Finalizer
	clock       clock.Clock
	random      random.Random
	logger      *slog.Logger
	cfg         Config

	mu     sync.Mutex
	locks  map[model.SessionCode]*sessionLock
	timers map[model.SessionCode]armedTimer
}

type armedTimer struct {
	timer clock.Timer
	stamp time.Time
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewScheduler creates a new Scheduler
func NewScheduler(
	storage storage.SessionStore,
	catalog storage.QuizCatalog,
	broadcaster *broadcast.Broadcaster,
	finalizer Finalizer,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
	cfg Config,
) *Scheduler {
	if cfg.RevealWindow <= 0 {
		cfg.RevealWindow = DefaultRevealWindow
	}
	if cfg.StartCountdown < 0 {
		cfg.StartCountdown = DefaultStartCountdown
	}
	return &Scheduler{
		storage:     storage,
		catalog:     catalog,
		broadcaster: broadcaster,
		finalizer:   finalizer,
		clock:       clock,
		random:      random,
		logger:      logger.With(slog.String("component", "gameflow")),
		cfg:         cfg,
		locks:       make(map[model.SessionCode]*sessionLock),
		timers:      make(map[model.SessionCode]armedTimer),
	}
}

// Locked runs fn while holding the session's lock, so it cannot interleave with a transition
func (s *Scheduler) Locked(code model.SessionCode, fn func() error) error {
	unlock := s.lock(code)
	defer unlock()
	return fn()
}

// Start takes a session out of the lobby into the initial countdown. Host only.
func (s *Scheduler) Start(ctx context.Context, code model.SessionCode, callerID model.PlayerID) (*model.Session, error) {
	unlock := s.lock(code)
	defer unlock()

	session, err := s.storage.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if !session.IsHost(callerID) {
		return nil, model.ErrNotHost
	}
	if !session.Status.CanAdvanceTo(model.SessionStatusStarted) {
		return nil, model.ErrNotInLobby
	}

	quiz, err := s.catalog.GetQuiz(ctx, session.Quiz.ID, session.HostID)
	if err != nil {
		return nil, err
	}
	questions := s.prepareQuestions(quiz.Questions, session.Settings)
	if len(questions) == 0 {
		return nil, model.ErrNoQuestions
	}

	// The marker guards against a second process starting the same session
	// and closes the roster to new players before it is read
	first, err := s.storage.MarkStarted(ctx, code)
	if err != nil {
		return nil, err
	}
	if !first {
		return nil, model.ErrNotInLobby
	}

	ids, err := s.begin(ctx, session, questions)
	if err != nil {
		if clearErr := s.storage.ClearStarted(ctx, code); clearErr != nil {
			s.logger.Error("failed to clear started marker",
				slog.String("session", string(code)),
				slog.String("error", clearErr.Error()))
		}
		return nil, err
	}

	s.logger.Info("session started",
		slog.String("session", string(code)),
		slog.Int("players", len(ids)),
		slog.Int("questions", len(questions)))

	s.broadcaster.PublishSession(ctx, session)
	s.arm(code, session.Round)
	return session, nil
}

// begin writes the round state of a freshly started session and moves it into the countdown.
// It returns the roster the game starts with.
func (s *Scheduler) begin(ctx context.Context, session *model.Session, questions []model.Question) ([]model.PlayerID, error) {
	code := session.Code

	players, err := s.storage.GetPlayers(ctx, code)
	if err != nil {
		return nil, err
	}
	ids := playerIDs(players)

	if err := s.storage.SaveQuestions(ctx, code, questions); err != nil {
		return nil, err
	}
	if err := s.storage.InitScores(ctx, code, ids); err != nil {
		return nil, err
	}
	if err := s.storage.ResetRemaining(ctx, code, 0, len(ids)); err != nil {
		return nil, err
	}

	now := s.now()
	session.Status = model.SessionStatusStarted
	session.Settings.QuestionCount = len(questions)
	session.Round = model.StartingRound(now, s.cfg.StartCountdown)
	session.UpdatedAt = now
	if err := s.storage.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return ids, nil
}

// Advance moves a session to its next round if its current round still started at expected.
// Timers and early transitions both come through here; a mismatched stamp or a vanished session is a no-op.
func (s *Scheduler) Advance(ctx context.Context, code model.SessionCode, expected time.Time) error {
	unlock := s.lock(code)
	defer unlock()

	session, err := s.storage.GetSession(ctx, code)
	if errors.Is(err, model.ErrSessionNotFound) {
		s.stopTimer(code)
		s.logger.Info("advance skipped, session gone", slog.String("session", string(code)))
		return nil
	}
	if err != nil {
		return err
	}
	if session.Status != model.SessionStatusStarted {
		s.logger.Debug("advance skipped, session not running",
			slog.String("session", string(code)),
			slog.String("status", string(session.Status)))
		return nil
	}
	if !session.Round.StartedAt.Equal(expected) {
		s.logger.Debug("advance skipped, stale round",
			slog.String("session", string(code)),
			slog.Time("expected", expected),
			slog.Time("current", session.Round.StartedAt))
		return nil
	}

	s.stopTimer(code)
	return s.transition(ctx, session)
}

// Cancel stops the session's pending timer, if any
func (s *Scheduler) Cancel(code model.SessionCode) {
	s.stopTimer(code)
}

// Pending reports whether the session has an armed timer
func (s *Scheduler) Pending(code model.SessionCode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[code]
	return ok
}

// Shutdown stops every pending timer
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, t := range s.timers {
		t.timer.Stop()
		delete(s.timers, code)
	}
}

// transition applies one edge of the round state machine. Callers hold the session lock.
func (s *Scheduler) transition(ctx context.Context, session *model.Session) error {
	code := session.Code
	now := s.now()

	questions, err := s.storage.GetQuestions(ctx, code)
	if err != nil {
		return err
	}

	round := session.Round
	var next model.Round

	switch round.Phase {
	case model.PhaseCooldown:
		idx := round.QuestionIndex + 1
		if idx >= len(questions) {
			return fmt.Errorf("question %d out of range for session %s", idx, code)
		}
		players, err := s.storage.GetPlayers(ctx, code)
		if err != nil {
			return err
		}
		if err := s.storage.SeedAnswers(ctx, code, idx, playerIDs(players)); err != nil {
			return err
		}
		next = model.Round{
			Phase:         model.PhaseQuestion,
			QuestionIndex: idx,
			StartedAt:     now,
			Duration:      session.Settings.TimePerQuestion,
			Question:      questions[idx].View(false),
		}

	case model.PhaseQuestion:
		idx := round.QuestionIndex
		if _, err := s.storage.FlushScores(ctx, code, idx); err != nil {
			return err
		}
		next = model.Round{
			Phase:         model.PhaseResult,
			QuestionIndex: idx,
			StartedAt:     now,
			Duration:      s.cfg.RevealWindow,
			Question:      questions[idx].View(true),
		}

	case model.PhaseResult:
		idx := round.QuestionIndex
		if idx+1 >= len(questions) {
			return s.end(ctx, session, now)
		}
		count, err := s.storage.CountPlayers(ctx, code)
		if err != nil {
			return err
		}
		if err := s.storage.ResetRemaining(ctx, code, idx+1, count); err != nil {
			return err
		}
		next = model.Round{
			Phase:         model.PhaseCooldown,
			QuestionIndex: idx,
			StartedAt:     now,
			Duration:      session.Settings.Cooldown,
		}

	default:
		return fmt.Errorf("session %s in unknown round phase %q", code, round.Phase)
	}

	session.Round = next
	session.UpdatedAt = now
	if err := s.storage.SaveSession(ctx, session); err != nil {
		return err
	}

	s.logger.Info("round advanced",
		slog.String("session", string(code)),
		slog.String("from", string(round.Phase)),
		slog.String("to", string(next.Phase)),
		slog.Int("question", next.QuestionIndex))

	s.broadcaster.PublishSession(ctx, session)
	s.arm(code, next)
	return nil
}

func (s *Scheduler) end(ctx context.Context, session *model.Session, now time.Time) error {
	if !session.Status.CanAdvanceTo(model.SessionStatusEnded) {
		return fmt.Errorf("session %s cannot end from %s", session.Code, session.Status)
	}
	session.Status = model.SessionStatusEnded
	session.UpdatedAt = now

	s.logger.Info("session ended",
		slog.String("session", string(session.Code)),
		slog.Int("questions", session.Round.QuestionIndex+1))

	return s.finalizer.Finalize(ctx, session)
}

// arm schedules the advance out of round. Callers hold the session lock and have stopped any previous timer.
func (s *Scheduler) arm(code model.SessionCode, round model.Round) {
	stamp := round.StartedAt
	t := s.clock.AfterFunc(round.Duration, func() {
		s.fire(code, stamp)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[code] = armedTimer{timer: t, stamp: stamp}
}

func (s *Scheduler) fire(code model.SessionCode, stamp time.Time) {
	s.mu.Lock()
	if t, ok := s.timers[code]; ok && t.stamp.Equal(stamp) {
		delete(s.timers, code)
	}
	s.mu.Unlock()

	if err := s.Advance(context.Background(), code, stamp); err != nil {
		s.logger.Error("timed advance failed",
			slog.String("session", string(code)),
			slog.String("error", err.Error()))
	}
}

func (s *Scheduler) stopTimer(code model.SessionCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[code]; ok {
		t.timer.Stop()
		delete(s.timers, code)
	}
}

// lock acquires the session's lock and returns its release
func (s *Scheduler) lock(code model.SessionCode) func() {
	s.mu.Lock()
	l, ok := s.locks[code]
	if !ok {
		l = &sessionLock{}
		s.locks[code] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, code)
		}
		s.mu.Unlock()
	}
}

// now returns the current time as stored, so stamps survive a round trip through the store
func (s *Scheduler) now() time.Time {
	return s.clock.Now().UTC().Round(0)
}

// prepareQuestions copies the quiz questions, applies shuffling and trims to the configured count
func (s *Scheduler) prepareQuestions(source []model.Question, settings model.Settings) []model.Question {
	questions := make([]model.Question, len(source))
	for i, q := range source {
		q.Options = append([]model.Option(nil), q.Options...)
		questions[i] = q
	}

	if settings.ShuffleQuestions {
		s.random.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}
	if n := settings.QuestionCount; n > 0 && n < len(questions) {
		questions = questions[:n]
	}
	if settings.ShuffleAnswers {
		for _, q := range questions {
			options := q.Options
			s.random.Shuffle(len(options), func(i, j int) {
				options[i], options[j] = options[j], options[i]
			})
		}
	}
	return questions
}

func playerIDs(players []*model.Player) []model.PlayerID {
	ids := make([]model.PlayerID, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	return ids
}
