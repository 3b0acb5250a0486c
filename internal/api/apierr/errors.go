package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/livequiz/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodePlayerNotFound  = "PLAYER_NOT_FOUND"
	CodeQuizNotFound    = "QUIZ_NOT_FOUND"
	CodeResultNotFound  = "RESULT_NOT_FOUND"
	CodeNotHost         = "NOT_HOST"
	CodeBanned          = "BANNED"
	CodeSessionFull     = "SESSION_FULL"
	CodeAlreadyStarted  = "ALREADY_STARTED"
	CodeNotInSession    = "NOT_IN_SESSION"
	CodeCannotKickHost  = "CANNOT_KICK_HOST"
	CodeAlreadyAnswered = "ALREADY_ANSWERED"
	CodeRoundNotOpen    = "ROUND_NOT_OPEN"
	CodeInvalidOption   = "INVALID_OPTION"
	CodeNotInLobby      = "NOT_IN_LOBBY"
	CodeNoQuestions     = "NO_QUESTIONS"
	CodeInvalidSettings = "INVALID_SETTINGS"
	CodeInvalidCommand  = "INVALID_COMMAND"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeInternalError   = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

var known = []struct {
	err     error
	code    string
	message string
}{
	{model.ErrSessionNotFound, CodeSessionNotFound, "Session not found"},
	{model.ErrHostNotFound, CodeSessionNotFound, "Session not found"},
	{model.ErrPlayerNotFound, CodePlayerNotFound, "Player not found"},
	{model.ErrQuizNotFound, CodeQuizNotFound, "Quiz not found"},
	{model.ErrResultNotFound, CodeResultNotFound, "Result not found"},
	{model.ErrNotHost, CodeNotHost, "Only the host can perform this action"},
	{model.ErrBanned, CodeBanned, "You were removed from this session and cannot rejoin yet"},
	{model.ErrSessionFull, CodeSessionFull, "Session is full"},
	{model.ErrAlreadyStarted, CodeAlreadyStarted, "Game has already started"},
	{model.ErrNotInSession, CodeNotInSession, "You are not in this session"},
	{model.ErrCannotKickHost, CodeCannotKickHost, "The host cannot be removed"},
	{model.ErrAlreadyAnswered, CodeAlreadyAnswered, "You already answered this question"},
	{model.ErrRoundNotOpen, CodeRoundNotOpen, "Answers are not being accepted right now"},
	{model.ErrInvalidOption, CodeInvalidOption, "That option is not part of this question"},
	{model.ErrNotInLobby, CodeNotInLobby, "Session is no longer in the lobby"},
	{model.ErrNoQuestions, CodeNoQuestions, "Quiz has no questions"},
	{model.ErrInvalidSettings, CodeInvalidSettings, "Invalid session settings"},
	{model.ErrInvalidCommand, CodeInvalidCommand, "Invalid command"},
}

// ToNotice converts an error to the payload sent to the caller of a rejected command.
// Internal errors get a generic message.
func ToNotice(err error) model.ErrorPayload {
	he := toHTTPError(err)
	return model.ErrorPayload{Code: he.apiError.Code, Message: he.apiError.Message}
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	status := statusOf(model.KindOf(err))
	for _, k := range known {
		if errors.Is(err, k.err) {
			return &httpError{status, APIError{k.code, k.message}}
		}
	}

	switch status {
	case http.StatusNotFound:
		return &httpError{status, APIError{CodeNotFound, "Not found"}}
	case http.StatusConflict:
		return &httpError{status, APIError{CodeConflict, "Conflict"}}
	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

func statusOf(kind model.ErrorKind) int {
	switch kind {
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindForbidden:
		return http.StatusForbidden
	case model.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
