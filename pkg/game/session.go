package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Hard caps on session parameters. Server configuration may narrow these but
// never widen them.
const (
	CapMaxPlayers = 8
	CapMaxRounds  = 30
)

// Session is the aggregate for one scheduled game: roster, caps, lifecycle
// timestamps and the append-only round-log history. It performs no locking of
// its own; the orchestrator serializes all access under the session's mutex.
type Session struct {
	ID         uuid.UUID
	Mode       Mode
	MaxPlayers int
	MaxRounds  int

	Participants []string

	CreatedAt     time.Time
	LastUpdatedAt time.Time
	StartedAt     time.Time
	CompletedAt   time.Time

	RoundLogs []RoundLog
}

// ScheduleSession creates a not-yet-started session with an empty roster.
func ScheduleSession(id uuid.UUID, mode Mode, maxPlayers, maxRounds int, now time.Time) (*Session, error) {
	if mode != ModeTower && mode != ModeWell {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidParams, mode)
	}
	if maxPlayers < 2 || maxPlayers > CapMaxPlayers {
		return nil, fmt.Errorf("%w: maxPlayers %d not in [2,%d]", ErrInvalidParams, maxPlayers, CapMaxPlayers)
	}
	if maxRounds < 1 || maxRounds > CapMaxRounds {
		return nil, fmt.Errorf("%w: maxRounds %d not in [1,%d]", ErrInvalidParams, maxRounds, CapMaxRounds)
	}
	return &Session{
		ID:            id,
		Mode:          mode,
		MaxPlayers:    maxPlayers,
		MaxRounds:     maxRounds,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}, nil
}

// IsStarted reports whether the session has been started.
func (s *Session) IsStarted() bool { return !s.StartedAt.IsZero() }

// IsCompleted reports whether the session has finished.
func (s *Session) IsCompleted() bool { return !s.CompletedAt.IsZero() }

// HasParticipant reports roster membership.
func (s *Session) HasParticipant(playerID string) bool {
	for _, p := range s.Participants {
		if p == playerID {
			return true
		}
	}
	return false
}

// AddParticipant appends the player to the roster. Adding a player that is
// already present is a no-op. Joining is only allowed before the session
// starts, and only while there is room.
func (s *Session) AddParticipant(playerID string, now time.Time) error {
	if s.IsCompleted() {
		return ErrAlreadyCompleted
	}
	if s.IsStarted() {
		return ErrAlreadyStarted
	}
	if s.HasParticipant(playerID) {
		return nil
	}
	if len(s.Participants) >= s.MaxPlayers {
		return fmt.Errorf("%w: %d/%d players", ErrCapacity, len(s.Participants), s.MaxPlayers)
	}
	s.Participants = append(s.Participants, playerID)
	s.LastUpdatedAt = now
	return nil
}

// RemoveParticipant drops the player from the roster if present. Removal is
// best-effort and never fails on an unknown player.
func (s *Session) RemoveParticipant(playerID string, now time.Time) {
	if s.IsStarted() || s.IsCompleted() {
		return
	}
	for i, p := range s.Participants {
		if p == playerID {
			s.Participants = append(s.Participants[:i], s.Participants[i+1:]...)
			s.LastUpdatedAt = now
			return
		}
	}
}

// Start transitions the session to started.
func (s *Session) Start(now time.Time) error {
	if s.IsCompleted() {
		return ErrAlreadyCompleted
	}
	if s.IsStarted() {
		return ErrAlreadyStarted
	}
	if len(s.Participants) == 0 {
		return ErrEmptyRoster
	}
	s.StartedAt = now
	s.LastUpdatedAt = now
	return nil
}

// Complete transitions the session to completed. The completion timestamp
// must not precede the start timestamp.
func (s *Session) Complete(now time.Time) error {
	if s.IsCompleted() {
		return ErrAlreadyCompleted
	}
	if !s.IsStarted() {
		return ErrNotStarted
	}
	if now.Before(s.StartedAt) {
		return ErrTimestampBeforeStart
	}
	s.CompletedAt = now
	s.LastUpdatedAt = now
	return nil
}

// RegisterRound appends a resolved round's log. Logs must reference this
// session and arrive in round order; the history is capped at MaxRounds.
func (s *Session) RegisterRound(log RoundLog, now time.Time) error {
	if log.SessionID != s.ID {
		return fmt.Errorf("%w: log for %s", ErrWrongSession, log.SessionID)
	}
	if len(s.RoundLogs) >= s.MaxRounds {
		return fmt.Errorf("%w: %d rounds logged", ErrRoundCapReached, len(s.RoundLogs))
	}
	if want := len(s.RoundLogs) + 1; log.RoundNumber != want {
		return fmt.Errorf("%w: expected round %d, got %d", ErrInvalidParams, want, log.RoundNumber)
	}
	s.RoundLogs = append(s.RoundLogs, log)
	s.LastUpdatedAt = now
	return nil
}
