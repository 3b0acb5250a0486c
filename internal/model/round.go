package model

import "time"

// RoundPhase tags which part of a question's lifecycle is active
type RoundPhase string

const (
	PhaseCooldown RoundPhase = "cooldown" // Countdown before the next question
	PhaseQuestion RoundPhase = "question" // Answers accepted
	PhaseResult   RoundPhase = "result"   // Answer key revealed
)

// Round is the game state of a started session.
//
// Question carries the phase-appropriate view: nil during cooldown, without the
// answer key during question, with the key during result.
type Round struct {
	Phase         RoundPhase
	QuestionIndex int
	StartedAt     time.Time
	Duration      time.Duration
	Question      *QuestionView
}

// EndsAt returns when the round's timer is due
func (r Round) EndsAt() time.Time {
	return r.StartedAt.Add(r.Duration)
}

// StartingRound returns the countdown round entered when a game starts.
// QuestionIndex is -1 so the first cooldown→question edge lands on question 0.
func StartingRound(now time.Time, countdown time.Duration) Round {
	return Round{
		Phase:         PhaseCooldown,
		QuestionIndex: -1,
		StartedAt:     now,
		Duration:      countdown,
	}
}
