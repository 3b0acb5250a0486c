package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/livequiz/internal/api/handler"
	"github.com/mcoot/livequiz/internal/api/middleware"
	"github.com/mcoot/livequiz/internal/api/stream"
	"github.com/mcoot/livequiz/internal/bus"
	httpmiddleware "github.com/mcoot/livequiz/internal/middleware"
	"github.com/mcoot/livequiz/internal/services/session"
	"github.com/mcoot/livequiz/internal/storage"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	Coordinator *session.Coordinator
	Catalog     storage.QuizCatalog
	Results     storage.ResultStore
	Bus         bus.Bus
	// Ready backs the readiness probe (optional)
	Ready handler.ReadyFunc
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	sessionHandler := handler.NewSessionHandler(cfg.Coordinator, stream.New(cfg.Bus, cfg.Logger, stream.DefaultPingPeriod))
	quizHandler := handler.NewQuizHandler(cfg.Catalog)
	resultsHandler := handler.NewResultsHandler(cfg.Results)
	healthHandler := handler.NewHealthHandler(cfg.Ready)

	// Create middleware
	authMiddleware := middleware.Auth()
	optionalAuthMiddleware := middleware.OptionalAuth()
	loggingMiddleware := httpmiddleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Snapshots carry nothing private, so spectators can read them
	api.Handle("/sessions/{code}", optionalAuthMiddleware(http.HandlerFunc(sessionHandler.Get))).Methods(http.MethodGet)

	// Session routes
	sessions := api.PathPrefix("/sessions").Subrouter()
	sessions.Use(authMiddleware)
	sessions.HandleFunc("", sessionHandler.Create).Methods(http.MethodPost)
	sessions.HandleFunc("/{code}/commands", sessionHandler.Command).Methods(http.MethodPost)
	sessions.HandleFunc("/{code}/events", sessionHandler.Events).Methods(http.MethodGet)

	// Quiz routes (author only)
	quizzes := api.PathPrefix("/quizzes").Subrouter()
	quizzes.Use(authMiddleware)
	quizzes.HandleFunc("", quizHandler.Create).Methods(http.MethodPost)
	quizzes.HandleFunc("/{id}", quizHandler.Get).Methods(http.MethodGet)
	quizzes.HandleFunc("/{id}", quizHandler.Replace).Methods(http.MethodPut)

	// Results are public
	api.HandleFunc("/results/{id}", resultsHandler.GetSummary).Methods(http.MethodGet)
	api.HandleFunc("/results/{id}/detail", resultsHandler.GetDetail).Methods(http.MethodGet)
	api.HandleFunc("/results/{id}/players", resultsHandler.ListPlayers).Methods(http.MethodGet)

	// Health check endpoints (no auth)
	api.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)
	api.HandleFunc("/ready", healthHandler.Ready).Methods(http.MethodGet)

	return r
}
