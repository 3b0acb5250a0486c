package model

import "encoding/json"

// CommandType identifies an inbound session command
type CommandType string

const (
	CommandJoin           CommandType = "join"
	CommandLeave          CommandType = "leave"
	CommandStart          CommandType = "start"
	CommandUpdateSettings CommandType = "update-settings"
	CommandUpdateProfile  CommandType = "update-profile"
	CommandKick           CommandType = "kick"
	CommandClose          CommandType = "close"
	CommandSubmitAnswer   CommandType = "submit-answer"
)

// Command is an inbound request from a connected participant
type Command struct {
	Type        CommandType     `json:"type"`
	SessionCode SessionCode     `json:"sessionCode"`
	Caller      Caller          `json:"caller"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// KickPayload names the player to evict
type KickPayload struct {
	PlayerID PlayerID `json:"playerId"`
}

// SubmitAnswerPayload is a chosen option
type SubmitAnswerPayload struct {
	OptionIndex int       `json:"optionIndex"`
	Key         OptionKey `json:"key"`
}

// UpdateProfilePayload carries new display info
type UpdateProfilePayload struct {
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}

// UpdateSettingsPayload is a partial settings change; nil fields are left as-is
type UpdateSettingsPayload struct {
	MaxPlayers       *int  `json:"maxPlayers,omitempty"`
	QuestionCount    *int  `json:"questionCount,omitempty"`
	TimePerQuestion  *int  `json:"timePerQuestion,omitempty"` // seconds
	Cooldown         *int  `json:"cooldown,omitempty"`        // seconds
	ShuffleQuestions *bool `json:"shuffleQuestions,omitempty"`
	ShuffleAnswers   *bool `json:"shuffleAnswers,omitempty"`
}
