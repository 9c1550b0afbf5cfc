package server

import (
	"time"
)

// Each event carries exactly one payload implementing this interface.
type EventPayload interface {
	Kind() SessionEventType
}

// RoundStartPayload announces a freshly dealt round.
type RoundStartPayload struct {
	RoundNumber       int
	SharedCardIndex   int
	PlayerCardIndexes map[string]int
	StartedAt         time.Time
}

func (RoundStartPayload) Kind() SessionEventType { return SessionEventRoundStart }

// RoundResultPayload reports the outcome of one attempt. Scores are present
// exactly when the round resolved.
type RoundResultPayload struct {
	RoundResolved   bool
	AttemptAccepted bool
	ResolvingPlayer string
	ResolvingCard   int
	MatchingSymbol  int
	RoundNumber     int
	ProcessedAt     time.Time
	Duration        time.Duration
	Scores          map[string]int
	GameCompleted   bool
}

func (RoundResultPayload) Kind() SessionEventType { return SessionEventRoundResult }

// GameOverPayload carries the final standings after finalize.
type GameOverPayload struct {
	FinalScores map[string]int
	CompletedAt time.Time
}

func (GameOverPayload) Kind() SessionEventType { return SessionEventGameOver }

// PlayerJoinedPayload announces a roster addition before the game starts.
type PlayerJoinedPayload struct {
	PlayerID    string
	DisplayName string
}

func (PlayerJoinedPayload) Kind() SessionEventType { return SessionEventPlayerJoined }
