package storage

import (
	"context"

	"github.com/mcoot/livequiz/internal/model"
)

// RecordResult reports the outcome of a RecordAnswer call
type RecordResult struct {
	// Written is false when the player already had a real answer recorded
	Written bool

	// AllAnswered is true when, after this write, no seeded placeholder is left for the question.
	// Exactly one successful writer observes it.
	AllAnswered bool
}

// SessionStore holds the ephemeral state of live sessions.
// Every record belongs to a session code and expires with it.
type SessionStore interface {
	// Session operations
	CreateSession(ctx context.Context, session *model.Session, host *model.Host) error
	GetSession(ctx context.Context, code model.SessionCode) (*model.Session, error)
	// SaveSession only overwrites a live session and refreshes the expiry of its namespace
	// and of the host lock while it still points at the session
	SaveSession(ctx context.Context, session *model.Session) error
	SessionExists(ctx context.Context, code model.SessionCode) (bool, error)
	// Touch refreshes expiries like SaveSession without rewriting any record
	Touch(ctx context.Context, session *model.Session) error

	// Host operations
	GetHost(ctx context.Context, code model.SessionCode) (*model.Host, error)
	SaveHost(ctx context.Context, code model.SessionCode, host *model.Host) error

	// Roster operations
	GetPlayers(ctx context.Context, code model.SessionCode) ([]*model.Player, error)
	GetPlayer(ctx context.Context, code model.SessionCode, id model.PlayerID) (*model.Player, error)
	// AddPlayer is a no-op returning false for an existing member; maxPlayers <= 0 disables the cap.
	// A new member is refused with ErrAlreadyStarted once the session is marked started.
	AddPlayer(ctx context.Context, code model.SessionCode, player *model.Player, maxPlayers int) (bool, error)
	// SavePlayer overwrites an existing member only
	SavePlayer(ctx context.Context, code model.SessionCode, player *model.Player) error
	RemovePlayer(ctx context.Context, code model.SessionCode, id model.PlayerID) (bool, error)
	CountPlayers(ctx context.Context, code model.SessionCode) (int, error)

	// Ban operations
	SaveBan(ctx context.Context, code model.SessionCode, ban model.Ban) error
	// GetBan returns nil without error when the player was never banned
	GetBan(ctx context.Context, code model.SessionCode, id model.PlayerID) (*model.Ban, error)
	GetBans(ctx context.Context, code model.SessionCode) ([]model.Ban, error)

	// Question snapshot operations
	SaveQuestions(ctx context.Context, code model.SessionCode, questions []model.Question) error
	GetQuestions(ctx context.Context, code model.SessionCode) ([]model.Question, error)

	// Answer operations
	SeedAnswers(ctx context.Context, code model.SessionCode, question int, players []model.PlayerID) error
	// GetAnswers and GetAnswer report a seeded placeholder as a nil answer
	GetAnswers(ctx context.Context, code model.SessionCode, question int) (map[model.PlayerID]*model.Answer, error)
	GetAnswer(ctx context.Context, code model.SessionCode, question int, id model.PlayerID) (*model.Answer, error)
	RecordAnswer(ctx context.Context, code model.SessionCode, id model.PlayerID, answer *model.Answer) (RecordResult, error)
	// RemovePlaceholder drops the player's unanswered placeholder.
	// It reports true when a placeholder was dropped and none is left for the question.
	RemovePlaceholder(ctx context.Context, code model.SessionCode, question int, id model.PlayerID) (bool, error)

	// Remaining-correct counter operations
	ResetRemaining(ctx context.Context, code model.SessionCode, question int, n int) error
	DecrRemaining(ctx context.Context, code model.SessionCode, question int) (int64, error)
	IncrRemaining(ctx context.Context, code model.SessionCode, question int) error

	// Score accumulator operations
	InitScores(ctx context.Context, code model.SessionCode, players []model.PlayerID) error
	FlushScores(ctx context.Context, code model.SessionCode, question int) (bool, error)
	GetScores(ctx context.Context, code model.SessionCode) (map[model.PlayerID]int, error)

	// Lifecycle markers
	MarkStarted(ctx context.Context, code model.SessionCode) (bool, error)
	MarkFinalized(ctx context.Context, code model.SessionCode) (bool, error)
	// ClearStarted undoes MarkStarted and resets the score accumulator after a failed start
	ClearStarted(ctx context.Context, code model.SessionCode) error

	// Host/quiz lock operations.
	// AcquireHostLock returns the code already holding the lock when it is not acquired.
	// ReleaseHostLock only deletes the lock while it still points at code.
	AcquireHostLock(ctx context.Context, hostID model.PlayerID, quizID model.QuizID, code model.SessionCode) (model.SessionCode, bool, error)
	ReleaseHostLock(ctx context.Context, hostID model.PlayerID, quizID model.QuizID, code model.SessionCode) error

	// Purge removes the host lock and every key of the session's namespace
	Purge(ctx context.Context, code model.SessionCode, hostID model.PlayerID, quizID model.QuizID) error
}

// QuizCatalog looks up authored quizzes
type QuizCatalog interface {
	// GetQuiz returns the quiz if it exists and was authored by hostID
	GetQuiz(ctx context.Context, id model.QuizID, hostID model.PlayerID) (*model.Quiz, error)
	SaveQuiz(ctx context.Context, quiz *model.Quiz) error
}

// ResultStore persists finalized games
type ResultStore interface {
	// SaveResults writes the summary, detail and every player result together
	SaveResults(ctx context.Context, results *model.GameResults) error
	GetSummary(ctx context.Context, id model.ResultID) (*model.GameSummary, error)
	GetDetail(ctx context.Context, id model.ResultID) (*model.GameDetail, error)
	ListPlayerResults(ctx context.Context, id model.ResultID) ([]model.PlayerResult, error)
}
