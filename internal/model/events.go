package model

import "time"

// EventType identifies the type of outbound event
type EventType string

const (
	// Broadcast to every participant of a session
	EventSessionUpdated EventType = "session-updated"
	EventSessionClosed  EventType = "session-closed"

	// Host-only
	EventAnswerProgress EventType = "answer-progress"

	// Targeted at a single participant
	EventKicked    EventType = "kicked"
	EventError     EventType = "error"
	EventAnswerAck EventType = "answer-ack"
)

// Event is the envelope of everything published on the bus
type Event struct {
	Type        EventType   `json:"type"`
	Timestamp   time.Time   `json:"timestamp"`
	SessionCode SessionCode `json:"sessionCode"`
	Payload     any         `json:"payload,omitempty"`
}

// NoticePayload carries a human-readable message for kicked and closed events
type NoticePayload struct {
	Message string `json:"message"`
}

// ErrorPayload describes a rejected command
type ErrorPayload struct {
	Command CommandType `json:"command,omitempty"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

// AnswerAckPayload acknowledges a submit-answer command to its sender
type AnswerAckPayload struct {
	Accepted      bool          `json:"accepted"`
	QuestionIndex int           `json:"questionIndex"`
	Error         *ErrorPayload `json:"error,omitempty"`
}
