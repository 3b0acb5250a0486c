package model

import "time"

// SessionCode is a short human-enterable code identifying a session
type SessionCode string

// SessionStatus is the top-level lifecycle of a session
type SessionStatus string

const (
	SessionStatusLobby   SessionStatus = "lobby"   // Waiting for the host to start
	SessionStatusStarted SessionStatus = "started" // Rounds in progress
	SessionStatusEnded   SessionStatus = "ended"   // Terminal
)

// CanAdvanceTo reports whether moving from s to next keeps the status monotonic
func (s SessionStatus) CanAdvanceTo(next SessionStatus) bool {
	switch s {
	case SessionStatusLobby:
		return next == SessionStatusStarted
	case SessionStatusStarted:
		return next == SessionStatusEnded
	default:
		return false
	}
}

// Settings are host-configurable options of a session
type Settings struct {
	MaxPlayers       int
	QuestionCount    int
	TimePerQuestion  time.Duration
	Cooldown         time.Duration
	ShuffleQuestions bool
	ShuffleAnswers   bool
}

// DefaultSettings returns the settings a new session starts with
func DefaultSettings(questionCount int) Settings {
	return Settings{
		MaxPlayers:      8,
		QuestionCount:   questionCount,
		TimePerQuestion: 20 * time.Second,
		Cooldown:        5 * time.Second,
	}
}

// Validate checks the settings against the quiz they apply to
func (s Settings) Validate(quiz QuizInfo) error {
	if s.MaxPlayers < 1 {
		return ErrInvalidSettings
	}
	if s.QuestionCount < 1 || s.QuestionCount > quiz.QuestionCount {
		return ErrInvalidSettings
	}
	if s.TimePerQuestion <= 0 || s.Cooldown < 0 {
		return ErrInvalidSettings
	}
	return nil
}

// Session is the root record of one hosted quiz
type Session struct {
	Code     SessionCode
	HostID   PlayerID
	Quiz     QuizInfo
	Settings Settings
	Status   SessionStatus

	// Round is only meaningful while Status is started
	Round Round

	// ResultID is set once the finalized results have been persisted
	ResultID ResultID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsHost reports whether the given player owns the session
func (s *Session) IsHost(id PlayerID) bool {
	return s.HostID == id
}

// InQuestion reports whether answers are currently being accepted
func (s *Session) InQuestion() bool {
	return s.Status == SessionStatusStarted && s.Round.Phase == PhaseQuestion
}
