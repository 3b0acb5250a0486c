package request

import (
	"encoding/json"

	"github.com/mcoot/livequiz/internal/model"
)

// CreateSessionRequest is the request body for hosting a quiz
type CreateSessionRequest struct {
	QuizID string `json:"quiz_id"`
}

// CommandRequest is the request body for sending a session command
type CommandRequest struct {
	Type    model.CommandType `json:"type"`
	Payload json.RawMessage   `json:"payload,omitempty"`
}

// SaveQuizRequest is the request body for creating or replacing a quiz
type SaveQuizRequest struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Questions   []model.Question `json:"questions"`
}
