package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/livequiz/internal/api/apierr"
	"github.com/mcoot/livequiz/internal/api/response"
	"github.com/mcoot/livequiz/internal/model"
	"github.com/mcoot/livequiz/internal/storage"
)

// ResultsHandler serves finished games from the durable store
type ResultsHandler struct {
	results storage.ResultStore
}

// NewResultsHandler creates a new results handler
func NewResultsHandler(results storage.ResultStore) *ResultsHandler {
	return &ResultsHandler{results: results}
}

// GetSummary handles GET /api/v1/results/{id}
func (h *ResultsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.results.GetSummary(r.Context(), resultID(r))
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SummaryFromModel(summary))
}

// GetDetail handles GET /api/v1/results/{id}/detail
func (h *ResultsHandler) GetDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.results.GetDetail(r.Context(), resultID(r))
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.DetailFromModel(detail))
}

// ListPlayers handles GET /api/v1/results/{id}/players
func (h *ResultsHandler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.results.ListPlayerResults(r.Context(), resultID(r))
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	resp := make([]response.PlayerResult, len(players))
	for i, p := range players {
		resp[i] = response.PlayerResultFromModel(p)
	}
	response.JSON(w, http.StatusOK, resp)
}

func resultID(r *http.Request) model.ResultID {
	return model.ResultID(mux.Vars(r)["id"])
}
