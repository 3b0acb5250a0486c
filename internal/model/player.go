package model

import "time"

// PlayerID uniquely identifies a participant (authenticated user id or guest id)
type PlayerID string

// Caller is the identity attached to an inbound command by the authentication layer
type Caller struct {
	ID          PlayerID `json:"id"`
	DisplayName string   `json:"displayName"`
	Avatar      string   `json:"avatar"`
	IsGuest     bool     `json:"isGuest"`
}

// Profile is the display information a participant may change
type Profile struct {
	DisplayName string
	Avatar      string
}

// Player is a roster member of a session
type Player struct {
	ID          PlayerID
	DisplayName string
	Avatar      string
	IsGuest     bool
	JoinedAt    time.Time

	// TotalScore is filled from the score accumulator when read; it is never written by the roster
	TotalScore int
}

// NewPlayer creates a roster record for a caller joining at the given time
func NewPlayer(caller Caller, joinedAt time.Time) *Player {
	return &Player{
		ID:          caller.ID,
		DisplayName: caller.DisplayName,
		Avatar:      caller.Avatar,
		IsGuest:     caller.IsGuest,
		JoinedAt:    joinedAt,
	}
}

// Host is the presence record of the session owner.
// Stored apart from the roster so Online can flip without touching players.
type Host struct {
	ID          PlayerID
	DisplayName string
	Avatar      string
	Online      bool
}

// Ban blocks a player from rejoining for a fixed window after BannedAt
type Ban struct {
	PlayerID PlayerID
	BannedAt time.Time
}

// Active reports whether the ban still blocks a join at now.
// The window is inclusive at its end: a ban at T blocks through T+window.
func (b Ban) Active(now time.Time, window time.Duration) bool {
	return !now.After(b.BannedAt.Add(window))
}
