package broadcast

import (
	"time"

	"github.com/mcoot/livequiz/internal/model"
)

// SessionSnapshot is the full session state sent to every participant
type SessionSnapshot struct {
	Code      model.SessionCode   `json:"code"`
	Status    model.SessionStatus `json:"status"`
	Quiz      QuizView            `json:"quiz"`
	Settings  SettingsView        `json:"settings"`
	Host      *HostView           `json:"host,omitempty"`
	Players   []PlayerView        `json:"players"`
	Round     *RoundView          `json:"round,omitempty"`
	ResultID  model.ResultID      `json:"resultId,omitempty"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

type QuizView struct {
	ID            model.QuizID `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	QuestionCount int          `json:"questionCount"`
}

// SettingsView reports durations in whole seconds
type SettingsView struct {
	MaxPlayers       int  `json:"maxPlayers"`
	QuestionCount    int  `json:"questionCount"`
	TimePerQuestion  int  `json:"timePerQuestion"`
	Cooldown         int  `json:"cooldown"`
	ShuffleQuestions bool `json:"shuffleQuestions"`
	ShuffleAnswers   bool `json:"shuffleAnswers"`
}

type HostView struct {
	ID          model.PlayerID `json:"id"`
	DisplayName string         `json:"displayName"`
	Avatar      string         `json:"avatar"`
	Online      bool           `json:"online"`
}

type PlayerView struct {
	ID          model.PlayerID `json:"id"`
	DisplayName string         `json:"displayName"`
	Avatar      string         `json:"avatar"`
	IsGuest     bool           `json:"isGuest"`
	Score       int            `json:"score"`
}

type RoundView struct {
	Phase         model.RoundPhase    `json:"phase"`
	QuestionIndex int                 `json:"questionIndex"`
	StartedAt     time.Time           `json:"startedAt"`
	EndsAt        time.Time           `json:"endsAt"`
	DurationMs    int64               `json:"durationMs"`
	Question      *model.QuestionView `json:"question,omitempty"`
}

// AnswerProgress is the host-only view of answers to the current question
type AnswerProgress struct {
	QuestionIndex int               `json:"questionIndex"`
	Answered      int               `json:"answered"`
	Total         int               `json:"total"`
	Answers       []AnswerEntryView `json:"answers"`
}

type AnswerEntryView struct {
	PlayerID    model.PlayerID  `json:"playerId"`
	Answered    bool            `json:"answered"`
	OptionIndex int             `json:"optionIndex"`
	Key         model.OptionKey `json:"key,omitempty"`
	Score       int             `json:"score"`
	AnsweredAt  *time.Time      `json:"answeredAt,omitempty"`
}

// NewSessionSnapshot assembles a snapshot; players are listed in the given order with their accumulated scores
func NewSessionSnapshot(session *model.Session, host *model.Host, players []*model.Player, scores map[model.PlayerID]int) *SessionSnapshot {
	snap := &SessionSnapshot{
		Code:   session.Code,
		Status: session.Status,
		Quiz: QuizView{
			ID:            session.Quiz.ID,
			Title:         session.Quiz.Title,
			Description:   session.Quiz.Description,
			QuestionCount: session.Quiz.QuestionCount,
		},
		Settings: SettingsView{
			MaxPlayers:       session.Settings.MaxPlayers,
			QuestionCount:    session.Settings.QuestionCount,
			TimePerQuestion:  int(session.Settings.TimePerQuestion / time.Second),
			Cooldown:         int(session.Settings.Cooldown / time.Second),
			ShuffleQuestions: session.Settings.ShuffleQuestions,
			ShuffleAnswers:   session.Settings.ShuffleAnswers,
		},
		Players:   make([]PlayerView, 0, len(players)),
		ResultID:  session.ResultID,
		UpdatedAt: session.UpdatedAt,
	}

	if host != nil {
		snap.Host = &HostView{
			ID:          host.ID,
			DisplayName: host.DisplayName,
			Avatar:      host.Avatar,
			Online:      host.Online,
		}
	}

	for _, p := range players {
		snap.Players = append(snap.Players, PlayerView{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Avatar:      p.Avatar,
			IsGuest:     p.IsGuest,
			Score:       scores[p.ID],
		})
	}

	if session.Status == model.SessionStatusStarted {
		r := session.Round
		snap.Round = &RoundView{
			Phase:         r.Phase,
			QuestionIndex: r.QuestionIndex,
			StartedAt:     r.StartedAt,
			EndsAt:        r.EndsAt(),
			DurationMs:    r.Duration.Milliseconds(),
			Question:      r.Question,
		}
	}
	return snap
}

// NewAnswerProgress assembles the host view of one question's answers, in roster order
func NewAnswerProgress(question int, players []*model.Player, answers map[model.PlayerID]*model.Answer) *AnswerProgress {
	progress := &AnswerProgress{
		QuestionIndex: question,
		Total:         len(players),
		Answers:       make([]AnswerEntryView, 0, len(players)),
	}
	for _, p := range players {
		entry := AnswerEntryView{PlayerID: p.ID, OptionIndex: -1}
		if a := answers[p.ID]; a != nil {
			answeredAt := a.AnsweredAt
			entry.Answered = true
			entry.OptionIndex = a.OptionIndex
			entry.Key = a.Key
			entry.Score = a.Score
			entry.AnsweredAt = &answeredAt
			progress.Answered++
		}
		progress.Answers = append(progress.Answers, entry)
	}
	return progress
}
