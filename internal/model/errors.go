package model

import "errors"

// Common errors used across the application
var (
	// Not found errors
	ErrSessionNotFound   = errors.New("session not found")
	ErrHostNotFound      = errors.New("host not found")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrQuizNotFound      = errors.New("quiz not found")
	ErrQuestionsNotFound = errors.New("questions not found")
	ErrResultNotFound    = errors.New("result not found")

	// Forbidden errors
	ErrNotHost        = errors.New("player is not the host")
	ErrBanned         = errors.New("player is banned from this session")
	ErrSessionFull    = errors.New("session is full")
	ErrAlreadyStarted = errors.New("session has already started")
	ErrNotInSession   = errors.New("player is not in this session")
	ErrCannotKickHost = errors.New("host cannot be kicked")

	// Conflict errors
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrRoundNotOpen    = errors.New("question round is not open")
	ErrInvalidOption   = errors.New("invalid answer option")
	ErrNotInLobby      = errors.New("session is not in the lobby")
	ErrSessionExists   = errors.New("session code already in use")
	ErrNoQuestions     = errors.New("quiz has no questions")
	ErrInvalidSettings = errors.New("invalid session settings")
	ErrInvalidCommand  = errors.New("invalid command")
)

// ErrorKind classifies errors for callers of the coordinator
type ErrorKind string

const (
	KindNotFound  ErrorKind = "not_found"
	KindForbidden ErrorKind = "forbidden"
	KindConflict  ErrorKind = "conflict"
	KindInternal  ErrorKind = "internal"
)

var errorKinds = map[error]ErrorKind{
	ErrSessionNotFound:   KindNotFound,
	ErrHostNotFound:      KindNotFound,
	ErrPlayerNotFound:    KindNotFound,
	ErrQuizNotFound:      KindNotFound,
	ErrQuestionsNotFound: KindNotFound,
	ErrResultNotFound:    KindNotFound,

	ErrNotHost:        KindForbidden,
	ErrBanned:         KindForbidden,
	ErrSessionFull:    KindForbidden,
	ErrAlreadyStarted: KindForbidden,
	ErrNotInSession:   KindForbidden,
	ErrCannotKickHost: KindForbidden,

	ErrAlreadyAnswered: KindConflict,
	ErrRoundNotOpen:    KindConflict,
	ErrInvalidOption:   KindConflict,
	ErrNotInLobby:      KindConflict,
	ErrSessionExists:   KindConflict,
	ErrNoQuestions:     KindConflict,
	ErrInvalidSettings: KindConflict,
	ErrInvalidCommand:  KindConflict,
}

// KindOf returns the kind of a (possibly wrapped) error.
// Anything not recognised is internal.
func KindOf(err error) ErrorKind {
	for target, kind := range errorKinds {
		if errors.Is(err, target) {
			return kind
		}
	}
	return KindInternal
}
