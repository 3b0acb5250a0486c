package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mcoot/livequiz/internal/api/apierr"
	"github.com/mcoot/livequiz/internal/api/middleware"
	"github.com/mcoot/livequiz/internal/api/request"
	"github.com/mcoot/livequiz/internal/api/response"
	"github.com/mcoot/livequiz/internal/model"
	"github.com/mcoot/livequiz/internal/storage"
)

// QuizHandler lets authors manage their quizzes in the catalog
type QuizHandler struct {
	catalog storage.QuizCatalog
}

// NewQuizHandler creates a new quiz handler
func NewQuizHandler(catalog storage.QuizCatalog) *QuizHandler {
	return &QuizHandler{catalog: catalog}
}

// Create handles POST /api/v1/quizzes
func (h *QuizHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := middleware.MustGetCaller(r.Context())

	quiz, err := decodeQuiz(r)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	quiz.ID = model.QuizID(uuid.NewString())
	quiz.CreatorID = caller.ID

	if err := h.catalog.SaveQuiz(r.Context(), quiz); err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.QuizDetailFromModel(quiz))
}

// Get handles GET /api/v1/quizzes/{id}; only the author can read a quiz
func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := middleware.MustGetCaller(r.Context())

	quiz, err := h.catalog.GetQuiz(r.Context(), model.QuizID(mux.Vars(r)["id"]), caller.ID)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.QuizDetailFromModel(quiz))
}

// Replace handles PUT /api/v1/quizzes/{id}
func (h *QuizHandler) Replace(w http.ResponseWriter, r *http.Request) {
	caller := middleware.MustGetCaller(r.Context())
	id := model.QuizID(mux.Vars(r)["id"])

	if _, err := h.catalog.GetQuiz(r.Context(), id, caller.ID); err != nil {
		apierr.WriteError(w, err)
		return
	}

	quiz, err := decodeQuiz(r)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	quiz.ID = id
	quiz.CreatorID = caller.ID

	if err := h.catalog.SaveQuiz(r.Context(), quiz); err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.QuizDetailFromModel(quiz))
}

func decodeQuiz(r *http.Request) (*model.Quiz, error) {
	var req request.SaveQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apierr.NewInvalidRequestError("Invalid request body")
	}
	if err := validateQuiz(req); err != nil {
		return nil, apierr.NewInvalidRequestError(err.Error())
	}

	questions := make([]model.Question, len(req.Questions))
	for i, q := range req.Questions {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		questions[i] = q
	}

	return &model.Quiz{
		Title:       req.Title,
		Description: req.Description,
		Questions:   questions,
	}, nil
}

func validateQuiz(req request.SaveQuizRequest) error {
	if req.Title == "" {
		return errors.New("title is required")
	}
	if len(req.Questions) == 0 {
		return errors.New("at least one question is required")
	}
	for i, q := range req.Questions {
		if q.Text == "" {
			return fmt.Errorf("question %d: text is required", i+1)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("question %d: at least two options are required", i+1)
		}
		keys := make(map[model.OptionKey]bool, len(q.Options))
		for _, o := range q.Options {
			if o.Key == "" || keys[o.Key] {
				return fmt.Errorf("question %d: option keys must be unique and non-empty", i+1)
			}
			keys[o.Key] = true
		}
		if !keys[q.CorrectKey] {
			return fmt.Errorf("question %d: correct key %q is not an option", i+1, q.CorrectKey)
		}
	}
	return nil
}
