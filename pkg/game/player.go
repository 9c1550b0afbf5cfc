package game

import (
	"fmt"
	"time"
)

// MaxDisplayNameLen bounds player display names on the wire and in storage.
const MaxDisplayNameLen = 32

// Player is the persistent identity record for a participant. It is owned by
// the player store; the orchestrator loads it, mutates it under the session
// lock, and writes it back.
type Player struct {
	ID           string
	DisplayName  string
	CreatedAt    time.Time
	LastActiveAt time.Time
	GamesPlayed  int
	GamesWon     int
}

// NewPlayer creates a player record with the given id and display name.
func NewPlayer(id, displayName string, now time.Time) (*Player, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty player id", ErrInvalidParams)
	}
	if displayName == "" || len(displayName) > MaxDisplayNameLen {
		return nil, fmt.Errorf("%w: display name must be 1..%d chars", ErrInvalidParams, MaxDisplayNameLen)
	}
	return &Player{
		ID:           id,
		DisplayName:  displayName,
		CreatedAt:    now,
		LastActiveAt: now,
	}, nil
}

// Touch bumps the player's last-active timestamp.
func (p *Player) Touch(now time.Time) {
	p.LastActiveAt = now
}

// RegisterGameResult records a finished game in the player's tallies.
func (p *Player) RegisterGameResult(won bool, now time.Time) {
	p.GamesPlayed++
	if won {
		p.GamesWon++
	}
	p.LastActiveAt = now
}
