package server

import (
	"fmt"

	"spotrace-backend/pkg/game"
)

// Validator performs the orchestrator's admission checks ahead of any
// aggregate mutation. It holds no state beyond the loaded config.
type Validator struct {
	cfg Config
}

// NewValidator creates a validator for the given config.
func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// EnsurePlayerCanJoin rejects joins on started, completed or full sessions
// and duplicate joins.
func (v *Validator) EnsurePlayerCanJoin(s *game.Session, playerID string) error {
	if s.IsCompleted() {
		return game.ErrAlreadyCompleted
	}
	if s.IsStarted() {
		return game.ErrAlreadyStarted
	}
	if s.HasParticipant(playerID) {
		return fmt.Errorf("%w: %s", game.ErrDuplicate, playerID)
	}
	if len(s.Participants) >= s.MaxPlayers {
		return fmt.Errorf("%w: %d/%d players", game.ErrCapacity, len(s.Participants), s.MaxPlayers)
	}
	return nil
}

// EnsureSessionCanStart rejects starting twice, starting finished sessions,
// and starting below the configured player floor.
func (v *Validator) EnsureSessionCanStart(s *game.Session) error {
	if s.IsCompleted() {
		return game.ErrAlreadyCompleted
	}
	if s.IsStarted() {
		return game.ErrAlreadyStarted
	}
	if len(s.Participants) < v.cfg.MinPlayers {
		return fmt.Errorf("%w: have %d, need %d",
			game.ErrNotEnoughPlayers, len(s.Participants), v.cfg.MinPlayers)
	}
	return nil
}

// EnsureAttemptAllowed rejects attempts from players outside the roster.
func (v *Validator) EnsureAttemptAllowed(s *game.Session, playerID string) error {
	if !s.HasParticipant(playerID) {
		return fmt.Errorf("%w: %s", game.ErrNotParticipant, playerID)
	}
	return nil
}
