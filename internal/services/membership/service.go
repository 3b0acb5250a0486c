package membership

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mcoot/livequiz/internal/dependencies/clock"
	"github.com/mcoot/livequiz/internal/model"
	"github.com/mcoot/livequiz/internal/storage"
)

// DefaultBanWindow is how long a kicked player is kept out
const DefaultBanWindow = 5 * time.Minute

// Advancer triggers an early transition out of a round that started at expected
type Advancer interface {
	Advance(ctx context.Context, code model.SessionCode, expected time.Time) error
}

// Service enforces who may be part of a session
type Service struct {
	storage   storage.SessionStore
	advancer  Advancer
	clock     clock.Clock
	logger    *slog.Logger
	banWindow time.Duration
}

// New creates a new membership Service
func New(storage storage.SessionStore, advancer Advancer, clock clock.Clock, logger *slog.Logger, banWindow time.Duration) *Service {
	if banWindow <= 0 {
		banWindow = DefaultBanWindow
	}
	return &Service{
		storage:   storage,
		advancer:  advancer,
		clock:     clock,
		logger:    logger.With(slog.String("component", "membership")),
		banWindow: banWindow,
	}
}

// Join admits the caller to a session.
// The host comes back online; a new player is added to the roster while the session is in the lobby;
// an existing member may always reconnect.
func (s *Service) Join(ctx context.Context, code model.SessionCode, caller model.Caller) (*model.Session, error) {
	now := s.clock.Now()

	session, err := s.storage.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}

	ban, err := s.storage.GetBan(ctx, code, caller.ID)
	if err != nil {
		return nil, err
	}
	if ban != nil && ban.Active(now, s.banWindow) {
		return nil, model.ErrBanned
	}

	isHost := session.IsHost(caller.ID)
	isMember, err := s.isMember(ctx, code, caller.ID)
	if err != nil {
		return nil, err
	}

	if !isHost && !isMember {
		count, err := s.storage.CountPlayers(ctx, code)
		if err != nil {
			return nil, err
		}
		if count >= session.Settings.MaxPlayers {
			return nil, model.ErrSessionFull
		}
		if session.Status != model.SessionStatusLobby {
			return nil, model.ErrAlreadyStarted
		}
	}

	switch {
	case isHost:
		host, err := s.storage.GetHost(ctx, code)
		if err != nil {
			return nil, err
		}
		host.Online = true
		if err := s.storage.SaveHost(ctx, code, host); err != nil {
			return nil, err
		}
	case !isMember:
		// The roster add re-checks capacity atomically against concurrent joins
		if _, err := s.storage.AddPlayer(ctx, code, model.NewPlayer(caller, now), session.Settings.MaxPlayers); err != nil {
			return nil, err
		}
	}

	session, err = s.touch(ctx, session)
	if err != nil {
		return nil, err
	}

	s.logger.Info("member joined",
		slog.String("session", string(code)),
		slog.String("player_id", string(caller.ID)),
		slog.Bool("host", isHost),
		slog.Bool("reconnect", isMember))
	return session, nil
}

// Leave removes the caller from a session still in the lobby.
// Once started it is a no-op so disconnected players keep their slot and score.
// The returned flag reports whether anything changed.
func (s *Service) Leave(ctx context.Context, code model.SessionCode, id model.PlayerID) (*model.Session, bool, error) {
	session, err := s.storage.GetSession(ctx, code)
	if err != nil {
		return nil, false, err
	}
	if session.Status != model.SessionStatusLobby {
		return session, false, nil
	}

	if session.IsHost(id) {
		host, err := s.storage.GetHost(ctx, code)
		if err != nil {
			return nil, false, err
		}
		host.Online = false
		if err := s.storage.SaveHost(ctx, code, host); err != nil {
			return nil, false, err
		}
	} else {
		removed, err := s.storage.RemovePlayer(ctx, code, id)
		if err != nil {
			return nil, false, err
		}
		if !removed {
			return session, false, nil
		}
	}

	session, err = s.touch(ctx, session)
	if err != nil {
		return nil, false, err
	}

	s.logger.Info("member left",
		slog.String("session", string(code)),
		slog.String("player_id", string(id)))
	return session, true, nil
}

// Kick removes a player and bans them for the ban window. Host only.
func (s *Service) Kick(ctx context.Context, code model.SessionCode, callerID, target model.PlayerID) (*model.Session, error) {
	now := s.clock.Now()

	session, err := s.storage.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if !session.IsHost(callerID) {
		return nil, model.ErrNotHost
	}
	if session.IsHost(target) {
		return nil, model.ErrCannotKickHost
	}

	if _, err := s.storage.RemovePlayer(ctx, code, target); err != nil {
		return nil, err
	}
	if err := s.storage.SaveBan(ctx, code, model.Ban{PlayerID: target, BannedAt: now}); err != nil {
		return nil, err
	}

	// An open question no longer waits on the kicked player
	roundComplete := false
	if session.InQuestion() {
		roundComplete, err = s.storage.RemovePlaceholder(ctx, code, session.Round.QuestionIndex, target)
		if err != nil {
			return nil, err
		}
	}

	round := session.Round
	session, err = s.touch(ctx, session)
	if err != nil {
		return nil, err
	}

	s.logger.Info("player kicked",
		slog.String("session", string(code)),
		slog.String("player_id", string(target)),
		slog.Time("banned_until", now.Add(s.banWindow)))

	if roundComplete {
		if err := s.advancer.Advance(ctx, code, round.StartedAt); err != nil {
			s.logger.Error("early transition failed",
				slog.String("session", string(code)),
				slog.Int("question", round.QuestionIndex),
				slog.String("error", err.Error()))
		}
		return s.storage.GetSession(ctx, code)
	}
	return session, nil
}

// UpdateProfile changes the display info of whichever record matches the caller.
// Empty fields are left unchanged.
func (s *Service) UpdateProfile(ctx context.Context, code model.SessionCode, id model.PlayerID, profile model.Profile) (*model.Session, error) {
	session, err := s.storage.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}

	if session.IsHost(id) {
		host, err := s.storage.GetHost(ctx, code)
		if err != nil {
			return nil, err
		}
		applyProfile(&host.DisplayName, &host.Avatar, profile)
		if err := s.storage.SaveHost(ctx, code, host); err != nil {
			return nil, err
		}
	} else {
		player, err := s.storage.GetPlayer(ctx, code, id)
		if errors.Is(err, model.ErrPlayerNotFound) {
			return nil, model.ErrNotInSession
		}
		if err != nil {
			return nil, err
		}
		applyProfile(&player.DisplayName, &player.Avatar, profile)
		if err := s.storage.SavePlayer(ctx, code, player); err != nil {
			if errors.Is(err, model.ErrPlayerNotFound) {
				return nil, model.ErrNotInSession
			}
			return nil, err
		}
	}

	return s.touch(ctx, session)
}

func applyProfile(displayName, avatar *string, profile model.Profile) {
	if profile.DisplayName != "" {
		*displayName = profile.DisplayName
	}
	if profile.Avatar != "" {
		*avatar = profile.Avatar
	}
}

func (s *Service) isMember(ctx context.Context, code model.SessionCode, id model.PlayerID) (bool, error) {
	_, err := s.storage.GetPlayer(ctx, code, id)
	if errors.Is(err, model.ErrPlayerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// touch refreshes the session's expiry and returns its current state
func (s *Service) touch(ctx context.Context, session *model.Session) (*model.Session, error) {
	if err := s.storage.Touch(ctx, session); err != nil {
		return nil, err
	}
	return s.storage.GetSession(ctx, session.Code)
}
