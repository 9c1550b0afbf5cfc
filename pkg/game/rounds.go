package game

import (
	"time"

	"github.com/google/uuid"
)

// RoundState is the live state of the round currently being raced. It exists
// only inside a running engine and is never persisted.
type RoundState struct {
	RoundNumber     int
	SharedCardIndex int
	// PlayerCardIndexes maps every participant to their dealt card index.
	// All values are distinct from each other and from SharedCardIndex.
	PlayerCardIndexes map[string]int
	StartedAt         time.Time
	ResolvedAt        time.Time
	Winner            string
}

// Resolved reports whether a winner has been recorded for the round.
func (r *RoundState) Resolved() bool {
	return !r.ResolvedAt.IsZero()
}

// CardsSnapshot returns a copy of the player card assignment.
func (r *RoundState) CardsSnapshot() map[string]int {
	out := make(map[string]int, len(r.PlayerCardIndexes))
	for p, c := range r.PlayerCardIndexes {
		out[p] = c
	}
	return out
}

// RoundLog is the immutable record emitted when a round resolves. It carries
// the session id by value; the session keeps an append-only list of logs.
type RoundLog struct {
	SessionID       uuid.UUID
	RoundNumber     int
	SharedCardIndex int
	WinnerID        string
	WinnerCardIndex int
	MatchingSymbol  int
	LoggedAt        time.Time
	Duration        time.Duration
}

// RoundResolution is what RegisterAttempt reports back to the orchestrator.
type RoundResolution struct {
	// AttemptAccepted is true when the clicked symbol exists on the
	// player's card, regardless of whether it was the matching one.
	AttemptAccepted bool
	// RoundResolved is true only for the first correct attempt of a round.
	RoundResolved bool
	RoundNumber   int
	// SharedCardIndex is the tower card of the attempted round.
	SharedCardIndex int
	ResolvedBy      string
	// PlayerCardIndex is the resolving player's card, set when resolved.
	PlayerCardIndex int
	MatchingSymbol  int
	Duration        time.Duration
}

// ScoreSnapshot is an immutable copy of the score table.
type ScoreSnapshot struct {
	Scores     map[string]int
	CapturedAt time.Time
}

// Winners returns the set of players holding the maximum score. Empty input
// yields an empty set.
func (s ScoreSnapshot) Winners() map[string]bool {
	winners := make(map[string]bool)
	max := -1
	for _, score := range s.Scores {
		if score > max {
			max = score
		}
	}
	for p, score := range s.Scores {
		if score == max {
			winners[p] = true
		}
	}
	return winners
}
