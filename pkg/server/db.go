package server

import (
	"context"

	"github.com/google/uuid"

	"spotrace-backend/pkg/game"
	"spotrace-backend/pkg/server/internal/db"
)

// PlayerStore persists player identity records.
type PlayerStore interface {
	// GetPlayer returns the player or game.ErrNotFound.
	GetPlayer(ctx context.Context, playerID string) (*game.Player, error)
	AddPlayer(ctx context.Context, p *game.Player) error
	UpdatePlayer(ctx context.Context, p *game.Player) error
}

// SessionStore persists session aggregates.
type SessionStore interface {
	// GetSession returns the session or game.ErrNotFound.
	GetSession(ctx context.Context, sessionID uuid.UUID) (*game.Session, error)
	AddSession(ctx context.Context, s *game.Session) error
	UpdateSession(ctx context.Context, s *game.Session) error
	// GetActiveSessions returns sessions that are started but not completed.
	GetActiveSessions(ctx context.Context) ([]*game.Session, error)
}

// RoundLogStore persists resolved-round records.
type RoundLogStore interface {
	AddRoundLog(ctx context.Context, log *game.RoundLog) error
	GetRoundLogs(ctx context.Context, sessionID uuid.UUID) ([]*game.RoundLog, error)
}

// LeaderboardStore persists cumulative per-player standings.
type LeaderboardStore interface {
	// GetEntry returns the entry or game.ErrNotFound.
	GetEntry(ctx context.Context, playerID string) (*game.LeaderboardEntry, error)
	UpsertEntry(ctx context.Context, e *game.LeaderboardEntry) error
	GetTop(ctx context.Context, count int) ([]*game.LeaderboardEntry, error)
}

// Stores bundles the collaborator stores the orchestrator composes. All
// implementations must be safe for concurrent use and must never call back
// into the orchestrator; every method is invoked while a session lock is
// held.
type Stores struct {
	Players     PlayerStore
	Sessions    SessionStore
	RoundLogs   RoundLogStore
	Leaderboard LeaderboardStore
}

// NewDatabase opens (creating if missing) the sqlite database at the given
// path and returns stores backed by it, plus a close func.
func NewDatabase(dbPath string) (Stores, func() error, error) {
	d, err := db.New(dbPath)
	if err != nil {
		return Stores{}, nil, err
	}
	return Stores{
		Players:     d,
		Sessions:    d,
		RoundLogs:   d,
		Leaderboard: d,
	}, d.Close, nil
}
