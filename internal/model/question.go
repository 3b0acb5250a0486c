package model

// QuizID identifies an authored quiz in the catalog
type QuizID string

// OptionKey labels an answer option (A-D)
type OptionKey string

// Option is one selectable answer of a question
type Option struct {
	Key  OptionKey `json:"key"`
	Text string    `json:"text"`
}

// Question is a server-side question including its answer key
type Question struct {
	ID         string    `json:"id"`
	Text       string    `json:"question"`
	Options    []Option  `json:"options"`
	CorrectKey OptionKey `json:"correctKey"`
}

// OptionAt returns the option at index, or false if out of range
func (q Question) OptionAt(index int) (Option, bool) {
	if index < 0 || index >= len(q.Options) {
		return Option{}, false
	}
	return q.Options[index], true
}

// View returns the player-facing copy of the question.
// The answer key is only included when reveal is set.
func (q Question) View(reveal bool) *QuestionView {
	options := make([]Option, len(q.Options))
	copy(options, q.Options)

	view := &QuestionView{
		ID:      q.ID,
		Text:    q.Text,
		Options: options,
	}
	if reveal {
		view.CorrectKey = q.CorrectKey
	}
	return view
}

// QuestionView is a question as shown to participants
type QuestionView struct {
	ID         string    `json:"id"`
	Text       string    `json:"question"`
	Options    []Option  `json:"options"`
	CorrectKey OptionKey `json:"correctKey,omitempty"`
}

// Quiz is what the quiz catalog returns for a host
type Quiz struct {
	ID          QuizID     `json:"id"`
	CreatorID   PlayerID   `json:"creatorId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// Info returns the metadata snapshot stored on a session
func (q *Quiz) Info() QuizInfo {
	return QuizInfo{
		ID:            q.ID,
		Title:         q.Title,
		Description:   q.Description,
		QuestionCount: len(q.Questions),
	}
}

// QuizInfo is the quiz metadata kept on a session
type QuizInfo struct {
	ID            QuizID
	Title         string
	Description   string
	QuestionCount int
}
