package game

import "errors"

// Domain-state errors raised by the session aggregate and game engines. The
// orchestrator surfaces them to the invoking client; none are retried.
var (
	ErrInvalidParams        = errors.New("invalid session parameters")
	ErrAlreadyStarted       = errors.New("session already started")
	ErrAlreadyCompleted     = errors.New("session already completed")
	ErrNotStarted           = errors.New("session not started")
	ErrCapacity             = errors.New("session is full")
	ErrEmptyRoster          = errors.New("session has no participants")
	ErrNotEnoughPlayers     = errors.New("not enough players to start")
	ErrNotParticipant       = errors.New("player is not a participant")
	ErrNoActiveRound        = errors.New("no active round")
	ErrGameOverAlready      = errors.New("game is already over")
	ErrPreviousUnresolved   = errors.New("previous round is unresolved")
	ErrWrongSession         = errors.New("round log belongs to another session")
	ErrRoundCapReached      = errors.New("round log cap reached")
	ErrTimestampBeforeStart = errors.New("completion timestamp precedes start")
	ErrModeNotSupported     = errors.New("game mode not supported")

	// ErrDuplicate is raised when a player joins a session they are
	// already part of.
	ErrDuplicate = errors.New("player already joined")

	// ErrNotFound is raised for lookups of unknown session or player ids.
	// Store implementations return it so callers can classify misses.
	ErrNotFound = errors.New("not found")
)
