package response

import (
	"time"

	"github.com/mcoot/livequiz/internal/model"
)

// HealthResponse is the response for the health and readiness endpoints
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Player represents a player as recorded in results
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar,omitempty"`
	IsGuest     bool   `json:"is_guest"`
	TotalScore  int    `json:"total_score"`
}

// PlayerFromModel converts a model.PlayerSnapshot to a response Player
func PlayerFromModel(p model.PlayerSnapshot) Player {
	return Player{
		ID:          string(p.ID),
		DisplayName: p.DisplayName,
		Avatar:      p.Avatar,
		IsGuest:     p.IsGuest,
		TotalScore:  p.TotalScore,
	}
}

// Quiz represents quiz metadata
type Quiz struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	QuestionCount int    `json:"question_count"`
}

// QuizFromModel converts model.QuizInfo
func QuizFromModel(q model.QuizInfo) Quiz {
	return Quiz{
		ID:            string(q.ID),
		Title:         q.Title,
		Description:   q.Description,
		QuestionCount: q.QuestionCount,
	}
}

// Summary represents a finished game in list views
type Summary struct {
	ID               string    `json:"id"`
	SessionCode      string    `json:"session_code"`
	Quiz             Quiz      `json:"quiz"`
	HostID           string    `json:"host_id"`
	PlayerCount      int       `json:"player_count"`
	Winner           *Player   `json:"winner,omitempty"`
	SessionCreatedAt time.Time `json:"session_created_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// SummaryFromModel converts a model.GameSummary
func SummaryFromModel(s *model.GameSummary) Summary {
	resp := Summary{
		ID:               string(s.ID),
		SessionCode:      string(s.SessionCode),
		Quiz:             QuizFromModel(s.Quiz),
		HostID:           string(s.HostID),
		PlayerCount:      s.PlayerCount,
		SessionCreatedAt: s.SessionCreatedAt,
		CreatedAt:        s.CreatedAt,
	}
	if s.Winner != nil {
		winner := PlayerFromModel(*s.Winner)
		resp.Winner = &winner
	}
	return resp
}

// Detail represents a finished game with its questions and answer keys
type Detail struct {
	ID              string           `json:"id"`
	SessionCode     string           `json:"session_code"`
	Quiz            Quiz             `json:"quiz"`
	HostID          string           `json:"host_id"`
	Questions       []model.Question `json:"questions"`
	Players         []Player         `json:"players"`
	TimePerQuestion int              `json:"time_per_question"`
	Cooldown        int              `json:"cooldown"`
	CreatedAt       time.Time        `json:"created_at"`
}

// DetailFromModel converts a model.GameDetail
func DetailFromModel(d *model.GameDetail) Detail {
	players := make([]Player, len(d.Players))
	for i, p := range d.Players {
		players[i] = PlayerFromModel(p)
	}
	return Detail{
		ID:              string(d.ID),
		SessionCode:     string(d.SessionCode),
		Quiz:            QuizFromModel(d.Quiz),
		HostID:          string(d.HostID),
		Questions:       d.Questions,
		Players:         players,
		TimePerQuestion: int(d.Settings.TimePerQuestion / time.Second),
		Cooldown:        int(d.Settings.Cooldown / time.Second),
		CreatedAt:       d.CreatedAt,
	}
}

// Answer is one entry of a player's answer log
type Answer struct {
	QuestionIndex int        `json:"question_index"`
	OptionIndex   *int       `json:"option_index"`
	Key           *string    `json:"key"`
	Score         int        `json:"score"`
	AnsweredAt    *time.Time `json:"answered_at,omitempty"`
}

// AnswerFromModel converts a model.Answer; unanswered questions have null option and key
func AnswerFromModel(a model.Answer) Answer {
	resp := Answer{QuestionIndex: a.QuestionIndex, Score: a.Score}
	if a.Answered() {
		option, key, at := a.OptionIndex, string(a.Key), a.AnsweredAt
		resp.OptionIndex = &option
		resp.Key = &key
		resp.AnsweredAt = &at
	}
	return resp
}

// PlayerResult is one player's ranked result
type PlayerResult struct {
	GameID     string   `json:"game_id"`
	Player     Player   `json:"player"`
	TotalScore int      `json:"total_score"`
	Rank       int      `json:"rank"`
	Answers    []Answer `json:"answers"`
}

// PlayerResultFromModel converts a model.PlayerResult
func PlayerResultFromModel(r model.PlayerResult) PlayerResult {
	answers := make([]Answer, len(r.Answers))
	for i, a := range r.Answers {
		answers[i] = AnswerFromModel(a)
	}
	return PlayerResult{
		GameID:     string(r.GameID),
		Player:     PlayerFromModel(r.Player),
		TotalScore: r.TotalScore,
		Rank:       r.Rank,
		Answers:    answers,
	}
}

// QuizDetail is a quiz as seen by its author, answer keys included
type QuizDetail struct {
	ID          string           `json:"id"`
	CreatorID   string           `json:"creator_id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Questions   []model.Question `json:"questions"`
}

// QuizDetailFromModel converts a model.Quiz
func QuizDetailFromModel(q *model.Quiz) QuizDetail {
	return QuizDetail{
		ID:          string(q.ID),
		CreatorID:   string(q.CreatorID),
		Title:       q.Title,
		Description: q.Description,
		Questions:   q.Questions,
	}
}
