package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mcoot/livequiz/internal/api/apierr"
	"github.com/mcoot/livequiz/internal/bus"
	"github.com/mcoot/livequiz/internal/dependencies/clock"
	"github.com/mcoot/livequiz/internal/dependencies/random"
	"github.com/mcoot/livequiz/internal/model"
	"github.com/mcoot/livequiz/internal/services/answer"
	"github.com/mcoot/livequiz/internal/services/broadcast"
	"github.com/mcoot/livequiz/internal/services/gameflow"
	"github.com/mcoot/livequiz/internal/services/membership"
	"github.com/mcoot/livequiz/internal/storage"
)

const (
	// CodeLength is the length of generated session codes
	CodeLength = 6
	// CodeAlphabet is the characters used in session codes (avoid confusing chars)
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// maxCreateAttempts bounds code collisions and stale-lock replacement on create
	maxCreateAttempts = 10
)

// Coordinator routes session commands to the services that own them
// and reports the outcome to connected participants.
type Coordinator struct {
	storage     storage.SessionStore
	catalog     storage.QuizCatalog
	membership  *membership.Service
	answers     *answer.Service
	scheduler   *gameflow.Scheduler
	broadcaster *broadcast.Broadcaster
	bus         bus.Bus
	clock       clock.Clock
	random      random.Random
	logger      *slog.Logger

	creates singleflight.Group
}

// NewCoordinator creates a new Coordinator
func NewCoordinator(
	storage storage.SessionStore,
	catalog storage.QuizCatalog,
	membership *membership.Service,
	answers *answer.Service,
	scheduler *gameflow.Scheduler,
	broadcaster *broadcast.Broadcaster,
	b bus.Bus,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		storage:     storage,
		catalog:     catalog,
		membership:  membership,
		answers:     answers,
		scheduler:   scheduler,
		broadcaster: broadcaster,
		bus:         b,
		clock:       clock,
		random:      random,
		logger:      logger.With(slog.String("component", "coordinator")),
	}
}

// CreateSession opens a lobby for the host's quiz.
// A host has at most one live session per quiz: if one exists it is returned
// with its quiz metadata refreshed instead of creating another.
func (c *Coordinator) CreateSession(ctx context.Context, host model.Caller, quizID model.QuizID) (*model.Session, error) {
	key := string(host.ID) + "/" + string(quizID)
	v, err, _ := c.creates.Do(key, func() (any, error) {
		return c.createSession(ctx, host, quizID)
	})
	if err != nil {
		return nil, err
	}
	// Callers coalesced onto the same create each get their own copy
	session := *v.(*model.Session)
	return &session, nil
}

func (c *Coordinator) createSession(ctx context.Context, host model.Caller, quizID model.QuizID) (*model.Session, error) {
	quiz, err := c.catalog.GetQuiz(ctx, quizID, host.ID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		code := model.SessionCode(c.random.String(CodeLength, CodeAlphabet))

		existing, acquired, err := c.storage.AcquireHostLock(ctx, host.ID, quizID, code)
		if err != nil {
			return nil, err
		}
		if !acquired {
			session, err := c.reuseSession(ctx, existing, host, quiz)
			if errors.Is(err, model.ErrSessionNotFound) {
				c.logger.Info("replacing stale host lock",
					slog.String("host_id", string(host.ID)),
					slog.String("quiz_id", string(quizID)),
					slog.String("session", string(existing)))
				if err := c.storage.ReleaseHostLock(ctx, host.ID, quizID, existing); err != nil {
					return nil, err
				}
				continue
			}
			if err != nil {
				return nil, err
			}
			return session, nil
		}

		session, err := c.newSession(ctx, code, host, quiz)
		if errors.Is(err, model.ErrSessionExists) {
			// Code collision with another host's session
			if err := c.storage.ReleaseHostLock(ctx, host.ID, quizID, code); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			_ = c.storage.ReleaseHostLock(ctx, host.ID, quizID, code)
			return nil, err
		}
		return session, nil
	}

	return nil, fmt.Errorf("could not allocate a session code after %d attempts", maxCreateAttempts)
}

func (c *Coordinator) newSession(ctx context.Context, code model.SessionCode, host model.Caller, quiz *model.Quiz) (*model.Session, error) {
	now := c.clock.Now().UTC()
	info := quiz.Info()
	session := &model.Session{
		Code:      code,
		HostID:    host.ID,
		Quiz:      info,
		Settings:  model.DefaultSettings(info.QuestionCount),
		Status:    model.SessionStatusLobby,
		CreatedAt: now,
		UpdatedAt: now,
	}
	hostRecord := &model.Host{
		ID:          host.ID,
		DisplayName: host.DisplayName,
		Avatar:      host.Avatar,
		Online:      true,
	}

	if err := c.storage.CreateSession(ctx, session, hostRecord); err != nil {
		return nil, err
	}

	c.logger.Info("session created",
		slog.String("session", string(code)),
		slog.String("host_id", string(host.ID)),
		slog.String("quiz_id", string(quiz.ID)))
	return session, nil
}

// reuseSession returns the host's live session, refreshing its quiz and host details while in the lobby.
// An ended session is treated as gone.
func (c *Coordinator) reuseSession(ctx context.Context, code model.SessionCode, host model.Caller, quiz *model.Quiz) (*model.Session, error) {
	var session *model.Session
	err := c.scheduler.Locked(code, func() error {
		s, err := c.storage.GetSession(ctx, code)
		if err != nil {
			return err
		}
		if s.Status == model.SessionStatusEnded {
			return model.ErrSessionNotFound
		}
		session = s
		if s.Status != model.SessionStatusLobby {
			return nil
		}

		info := quiz.Info()
		if info.QuestionCount != s.Quiz.QuestionCount {
			s.Settings.QuestionCount = info.QuestionCount
		}
		s.Quiz = info
		s.UpdatedAt = c.clock.Now().UTC()
		if err := c.storage.SaveSession(ctx, s); err != nil {
			return err
		}

		h, err := c.storage.GetHost(ctx, code)
		if err != nil {
			return err
		}
		if host.DisplayName != "" {
			h.DisplayName = host.DisplayName
		}
		if host.Avatar != "" {
			h.Avatar = host.Avatar
		}
		return c.storage.SaveHost(ctx, code, h)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("session reused",
		slog.String("session", string(code)),
		slog.String("host_id", string(host.ID)),
		slog.String("status", string(session.Status)))
	c.broadcaster.PublishSession(ctx, session)
	return session, nil
}

// GetSession returns the current session record
func (c *Coordinator) GetSession(ctx context.Context, code model.SessionCode) (*model.Session, error) {
	return c.storage.GetSession(ctx, code)
}

// Snapshot returns the participant view of a session
func (c *Coordinator) Snapshot(ctx context.Context, code model.SessionCode) (*broadcast.SessionSnapshot, error) {
	session, err := c.storage.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	return c.broadcaster.Snapshot(ctx, session)
}

// UpdateSettings applies a partial settings change. Host only, lobby only.
func (c *Coordinator) UpdateSettings(ctx context.Context, code model.SessionCode, callerID model.PlayerID, patch model.UpdateSettingsPayload) (*model.Session, error) {
	var session *model.Session
	err := c.scheduler.Locked(code, func() error {
		s, err := c.storage.GetSession(ctx, code)
		if err != nil {
			return err
		}
		if !s.IsHost(callerID) {
			return model.ErrNotHost
		}
		if s.Status != model.SessionStatusLobby {
			return model.ErrNotInLobby
		}

		settings := applySettings(s.Settings, patch)
		if err := settings.Validate(s.Quiz); err != nil {
			return err
		}
		s.Settings = settings
		s.UpdatedAt = c.clock.Now().UTC()
		if err := c.storage.SaveSession(ctx, s); err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("settings updated",
		slog.String("session", string(code)),
		slog.Int("max_players", session.Settings.MaxPlayers),
		slog.Int("question_count", session.Settings.QuestionCount))
	c.broadcaster.PublishSession(ctx, session)
	return session, nil
}

func applySettings(settings model.Settings, patch model.UpdateSettingsPayload) model.Settings {
	if patch.MaxPlayers != nil {
		settings.MaxPlayers = *patch.MaxPlayers
	}
	if patch.QuestionCount != nil {
		settings.QuestionCount = *patch.QuestionCount
	}
	if patch.TimePerQuestion != nil {
		settings.TimePerQuestion = time.Duration(*patch.TimePerQuestion) * time.Second
	}
	if patch.Cooldown != nil {
		settings.Cooldown = time.Duration(*patch.Cooldown) * time.Second
	}
	if patch.ShuffleQuestions != nil {
		settings.ShuffleQuestions = *patch.ShuffleQuestions
	}
	if patch.ShuffleAnswers != nil {
		settings.ShuffleAnswers = *patch.ShuffleAnswers
	}
	return settings
}

// Close ends a session early without recording results. Host only.
func (c *Coordinator) Close(ctx context.Context, code model.SessionCode, callerID model.PlayerID) error {
	err := c.scheduler.Locked(code, func() error {
		session, err := c.storage.GetSession(ctx, code)
		if err != nil {
			return err
		}
		if !session.IsHost(callerID) {
			return model.ErrNotHost
		}

		c.scheduler.Cancel(code)
		c.broadcaster.PublishClosed(ctx, code, "The host closed this session")
		return c.storage.Purge(ctx, code, session.HostID, session.Quiz.ID)
	})
	if err != nil {
		return err
	}

	c.logger.Info("session closed", slog.String("session", string(code)))
	return nil
}

// Handle executes one inbound command.
// A rejected command is reported to its caller on their user topic; the error is also returned.
func (c *Coordinator) Handle(ctx context.Context, cmd model.Command) error {
	err := c.dispatch(ctx, cmd)
	if err == nil {
		return nil
	}

	notice := apierr.ToNotice(err)
	notice.Command = cmd.Type

	attrs := []any{
		slog.String("session", string(cmd.SessionCode)),
		slog.String("player_id", string(cmd.Caller.ID)),
		slog.String("command", string(cmd.Type)),
		slog.String("error", err.Error()),
	}
	if model.KindOf(err) == model.KindInternal {
		c.logger.Error("command failed", attrs...)
	} else {
		c.logger.Info("command rejected", attrs...)
	}

	if cmd.Type == model.CommandSubmitAnswer {
		question := -1
		if session, getErr := c.storage.GetSession(ctx, cmd.SessionCode); getErr == nil {
			question = session.Round.QuestionIndex
		}
		c.broadcaster.NotifyAnswerAck(ctx, cmd.SessionCode, cmd.Caller.ID, model.AnswerAckPayload{
			Accepted:      false,
			QuestionIndex: question,
			Error:         &notice,
		})
	} else {
		c.broadcaster.NotifyError(ctx, cmd.SessionCode, cmd.Caller.ID, notice)
	}
	return err
}

func (c *Coordinator) dispatch(ctx context.Context, cmd model.Command) error {
	if cmd.SessionCode == "" || cmd.Caller.ID == "" {
		return fmt.Errorf("%w: missing session code or caller", model.ErrInvalidCommand)
	}
	code := cmd.SessionCode
	caller := cmd.Caller

	switch cmd.Type {
	case model.CommandJoin:
		// Serialized with Start so a new player lands either in the starting roster or nowhere
		var session *model.Session
		err := c.scheduler.Locked(code, func() error {
			var err error
			session, err = c.membership.Join(ctx, code, caller)
			return err
		})
		if err != nil {
			return err
		}
		c.broadcaster.PublishSession(ctx, session)
		return nil

	case model.CommandLeave:
		session, changed, err := c.membership.Leave(ctx, code, caller.ID)
		if err != nil {
			return err
		}
		if changed {
			c.broadcaster.PublishSession(ctx, session)
		}
		return nil

	case model.CommandStart:
		_, err := c.scheduler.Start(ctx, code, caller.ID)
		return err

	case model.CommandUpdateSettings:
		var payload model.UpdateSettingsPayload
		if err := decode(cmd, &payload); err != nil {
			return err
		}
		_, err := c.UpdateSettings(ctx, code, caller.ID, payload)
		return err

	case model.CommandUpdateProfile:
		var payload model.UpdateProfilePayload
		if err := decode(cmd, &payload); err != nil {
			return err
		}
		session, err := c.membership.UpdateProfile(ctx, code, caller.ID, model.Profile{
			DisplayName: payload.DisplayName,
			Avatar:      payload.Avatar,
		})
		if err != nil {
			return err
		}
		c.broadcaster.PublishSession(ctx, session)
		return nil

	case model.CommandKick:
		var payload model.KickPayload
		if err := decode(cmd, &payload); err != nil {
			return err
		}
		if payload.PlayerID == "" {
			return fmt.Errorf("%w: kick needs a player id", model.ErrInvalidCommand)
		}
		session, err := c.membership.Kick(ctx, code, caller.ID, payload.PlayerID)
		if err != nil {
			return err
		}
		c.broadcaster.NotifyKicked(ctx, code, payload.PlayerID)
		c.broadcaster.PublishSession(ctx, session)
		return nil

	case model.CommandClose:
		return c.Close(ctx, code, caller.ID)

	case model.CommandSubmitAnswer:
		var payload model.SubmitAnswerPayload
		if err := decode(cmd, &payload); err != nil {
			return err
		}
		a, err := c.answers.Submit(ctx, code, caller.ID, payload.OptionIndex, payload.Key)
		if err != nil {
			return err
		}
		c.broadcaster.NotifyAnswerAck(ctx, code, caller.ID, model.AnswerAckPayload{
			Accepted:      true,
			QuestionIndex: a.QuestionIndex,
		})
		return nil

	default:
		return fmt.Errorf("%w: unknown command %q", model.ErrInvalidCommand, cmd.Type)
	}
}

func decode(cmd model.Command, v any) error {
	if len(cmd.Payload) == 0 {
		return fmt.Errorf("%w: %s needs a payload", model.ErrInvalidCommand, cmd.Type)
	}
	if err := json.Unmarshal(cmd.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", model.ErrInvalidCommand, cmd.Type, err)
	}
	return nil
}

// Listen executes commands published on the commands topic until the subscription is closed
func (c *Coordinator) Listen(ctx context.Context) (bus.Subscription, error) {
	return c.bus.Subscribe(ctx, bus.CommandsTopic, func(ctx context.Context, payload []byte) {
		var cmd model.Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			c.logger.Warn("dropping undecodable command", slog.String("error", err.Error()))
			return
		}
		_ = c.Handle(ctx, cmd)
	})
}
