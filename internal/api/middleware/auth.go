package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/mcoot/livequiz/internal/api/apierr"
	"github.com/mcoot/livequiz/internal/model"
)

type contextKey string

const callerContextKey contextKey = "caller"

// Identity headers set by the authenticating gateway in front of the API
const (
	HeaderPlayerID    = "X-Player-Id"
	HeaderDisplayName = "X-Player-Name"
	HeaderAvatar      = "X-Player-Avatar"
	HeaderGuest       = "X-Player-Guest"
)

// Auth creates middleware that requires a caller identity
func Auth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := callerFromHeaders(r)
			if !ok {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// OptionalAuth attaches the caller identity if present but doesn't require it
func OptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if caller, ok := callerFromHeaders(r); ok {
				r = r.WithContext(WithCaller(r.Context(), caller))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerFromHeaders(r *http.Request) (model.Caller, bool) {
	id := r.Header.Get(HeaderPlayerID)
	if id == "" {
		return model.Caller{}, false
	}
	guest, _ := strconv.ParseBool(r.Header.Get(HeaderGuest))
	return model.Caller{
		ID:          model.PlayerID(id),
		DisplayName: r.Header.Get(HeaderDisplayName),
		Avatar:      r.Header.Get(HeaderAvatar),
		IsGuest:     guest,
	}, true
}

// WithCaller returns a context carrying the caller
func WithCaller(ctx context.Context, caller model.Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// GetCaller returns the caller from the request context
func GetCaller(ctx context.Context) (model.Caller, bool) {
	caller, ok := ctx.Value(callerContextKey).(model.Caller)
	return caller, ok
}

// MustGetCaller returns the caller or panics
func MustGetCaller(ctx context.Context) model.Caller {
	caller, ok := GetCaller(ctx)
	if !ok {
		panic("no caller in context - auth middleware not applied?")
	}
	return caller
}
