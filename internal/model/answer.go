package model

import "time"

// Answer is one player's submission for one question
type Answer struct {
	QuestionIndex int
	OptionIndex   int
	Key           OptionKey
	Score         int
	AnsweredAt    time.Time
}

// Unanswered returns the log entry for a question the player never answered
func Unanswered(questionIndex int) Answer {
	return Answer{QuestionIndex: questionIndex, OptionIndex: -1}
}

// Answered reports whether the entry holds a real submission
func (a Answer) Answered() bool {
	return a.Key != ""
}
