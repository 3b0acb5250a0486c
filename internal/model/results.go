package model

import "time"

// ResultID identifies a finalized game in the durable store
type ResultID string

// PlayerSnapshot is a player as recorded in the durable results
type PlayerSnapshot struct {
	ID          PlayerID
	IsGuest     bool
	DisplayName string
	Avatar      string
	TotalScore  int
}

// GameSummary is the list-view record of a finished game
type GameSummary struct {
	ID               ResultID
	SessionCode      SessionCode
	Quiz             QuizInfo
	HostID           PlayerID
	PlayerIDs        []PlayerID
	PlayerCount      int
	Winner           *PlayerSnapshot // nil when nobody played
	SessionCreatedAt time.Time
	CreatedAt        time.Time
}

// GameDetail is the full record of a finished game including its questions
type GameDetail struct {
	ID               ResultID
	SessionCode      SessionCode
	Quiz             QuizInfo
	Questions        []Question
	HostID           PlayerID
	Players          []PlayerSnapshot
	Settings         Settings
	SessionCreatedAt time.Time
	CreatedAt        time.Time
}

// PlayerResult is one player's ranked result with their answer log
type PlayerResult struct {
	GameID     ResultID
	Player     PlayerSnapshot
	TotalScore int
	Rank       int
	Answers    []Answer
}

// GameResults groups the three documents written when a game ends
type GameResults struct {
	Summary GameSummary
	Detail  GameDetail
	Players []PlayerResult
}
