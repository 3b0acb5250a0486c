package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/livequiz/internal/api/apierr"
	"github.com/mcoot/livequiz/internal/api/middleware"
	"github.com/mcoot/livequiz/internal/api/request"
	"github.com/mcoot/livequiz/internal/api/response"
	"github.com/mcoot/livequiz/internal/api/stream"
	"github.com/mcoot/livequiz/internal/bus"
	"github.com/mcoot/livequiz/internal/model"
	"github.com/mcoot/livequiz/internal/services/session"
)

// SessionHandler handles live session endpoints
type SessionHandler struct {
	coordinator *session.Coordinator
	streamer    *stream.Streamer
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(coordinator *session.Coordinator, streamer *stream.Streamer) *SessionHandler {
	return &SessionHandler{coordinator: coordinator, streamer: streamer}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := middleware.MustGetCaller(r.Context())

	var req request.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("Invalid request body"))
		return
	}
	if req.QuizID == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("quiz_id is required"))
		return
	}

	sess, err := h.coordinator.CreateSession(r.Context(), caller, model.QuizID(req.QuizID))
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	snapshot, err := h.coordinator.Snapshot(r.Context(), sess.Code)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, snapshot)
}

// Get handles GET /api/v1/sessions/{code}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.coordinator.Snapshot(r.Context(), sessionCode(r))
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, snapshot)
}

// Command handles POST /api/v1/sessions/{code}/commands.
// The outcome is delivered on the session's event topics; the response only reports rejection.
func (h *SessionHandler) Command(w http.ResponseWriter, r *http.Request) {
	caller := middleware.MustGetCaller(r.Context())

	var req request.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("Invalid request body"))
		return
	}
	if req.Type == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("type is required"))
		return
	}

	err := h.coordinator.Handle(r.Context(), model.Command{
		Type:        req.Type,
		SessionCode: sessionCode(r),
		Caller:      caller,
		Payload:     req.Payload,
	})
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.Accepted(w)
}

// Events handles GET /api/v1/sessions/{code}/events.
// The caller receives the session broadcasts, their own notices and, for the host, answer progress.
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	caller := middleware.MustGetCaller(r.Context())
	code := sessionCode(r)

	sess, err := h.coordinator.GetSession(r.Context(), code)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	topics := []string{bus.SessionTopic(code), bus.UserTopic(caller.ID)}
	if sess.IsHost(caller.ID) {
		topics = append(topics, bus.HostTopic(code))
	}

	h.streamer.Serve(w, r, code, caller.ID, topics...)
}

func sessionCode(r *http.Request) model.SessionCode {
	return model.SessionCode(strings.ToUpper(mux.Vars(r)["code"]))
}
