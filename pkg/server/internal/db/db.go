package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"spotrace-backend/pkg/game"
)

// DB is the sqlite-backed store for players, sessions, round logs and the
// leaderboard. A single DB value implements every store interface the server
// composes.
type DB struct {
	*sql.DB
}

// New opens the database at the given path and creates the schema if needed.
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

// createTables creates the necessary database tables
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			last_active_at TEXT NOT NULL,
			games_played INTEGER NOT NULL DEFAULT 0,
			games_won INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			max_players INTEGER NOT NULL,
			max_rounds INTEGER NOT NULL,
			participants TEXT NOT NULL,
			created_at TEXT NOT NULL,
			last_updated_at TEXT NOT NULL,
			started_at TEXT NOT NULL DEFAULT '',
			completed_at TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS round_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			round_number INTEGER NOT NULL,
			shared_card_index INTEGER NOT NULL,
			winner_id TEXT NOT NULL DEFAULT '',
			winner_card_index INTEGER NOT NULL DEFAULT -1,
			matching_symbol INTEGER NOT NULL,
			logged_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			UNIQUE(session_id, round_number),
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS leaderboard (
			player_id TEXT PRIMARY KEY,
			total_points INTEGER NOT NULL DEFAULT 0,
			games_played INTEGER NOT NULL DEFAULT 0,
			games_won INTEGER NOT NULL DEFAULT 0,
			last_updated_at TEXT NOT NULL
		)
	`)
	return err
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// GetPlayer returns the player record or game.ErrNotFound.
func (db *DB) GetPlayer(ctx context.Context, playerID string) (*game.Player, error) {
	var p game.Player
	var createdAt, lastActiveAt string
	err := db.QueryRowContext(ctx, `
		SELECT id, display_name, created_at, last_active_at, games_played, games_won
		FROM players WHERE id = ?
	`, playerID).Scan(&p.ID, &p.DisplayName, &createdAt, &lastActiveAt, &p.GamesPlayed, &p.GamesWon)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("player %s: %w", playerID, game.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %v", err)
	}
	if p.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if p.LastActiveAt, err = decodeTime(lastActiveAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// AddPlayer inserts a new player record.
func (db *DB) AddPlayer(ctx context.Context, p *game.Player) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO players (id, display_name, created_at, last_active_at, games_played, games_won)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.DisplayName, encodeTime(p.CreatedAt), encodeTime(p.LastActiveAt), p.GamesPlayed, p.GamesWon)
	if err != nil {
		return fmt.Errorf("failed to add player: %v", err)
	}
	return nil
}

// UpdatePlayer overwrites an existing player record.
func (db *DB) UpdatePlayer(ctx context.Context, p *game.Player) error {
	res, err := db.ExecContext(ctx, `
		UPDATE players SET display_name = ?, last_active_at = ?, games_played = ?, games_won = ?
		WHERE id = ?
	`, p.DisplayName, encodeTime(p.LastActiveAt), p.GamesPlayed, p.GamesWon, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update player: %v", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("player %s: %w", p.ID, game.ErrNotFound)
	}
	return nil
}

// GetSession returns the session aggregate, round logs included, or
// game.ErrNotFound.
func (db *DB) GetSession(ctx context.Context, sessionID uuid.UUID) (*game.Session, error) {
	var s game.Session
	var id, participants string
	var createdAt, lastUpdatedAt, startedAt, completedAt string
	err := db.QueryRowContext(ctx, `
		SELECT id, mode, max_players, max_rounds, participants,
		       created_at, last_updated_at, started_at, completed_at
		FROM sessions WHERE id = ?
	`, sessionID.String()).Scan(&id, &s.Mode, &s.MaxPlayers, &s.MaxRounds, &participants,
		&createdAt, &lastUpdatedAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", sessionID, game.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %v", err)
	}

	s.ID = sessionID
	if err := json.Unmarshal([]byte(participants), &s.Participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants: %v", err)
	}
	if s.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if s.LastUpdatedAt, err = decodeTime(lastUpdatedAt); err != nil {
		return nil, err
	}
	if s.StartedAt, err = decodeTime(startedAt); err != nil {
		return nil, err
	}
	if s.CompletedAt, err = decodeTime(completedAt); err != nil {
		return nil, err
	}

	logs, err := db.GetRoundLogs(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, l := range logs {
		s.RoundLogs = append(s.RoundLogs, *l)
	}
	return &s, nil
}

func sessionRowArgs(s *game.Session) ([]interface{}, error) {
	participants := s.Participants
	if participants == nil {
		participants = []string{}
	}
	enc, err := json.Marshal(participants)
	if err != nil {
		return nil, fmt.Errorf("failed to encode participants: %v", err)
	}
	return []interface{}{
		s.Mode.String(), s.MaxPlayers, s.MaxRounds, string(enc),
		encodeTime(s.CreatedAt), encodeTime(s.LastUpdatedAt),
		encodeTime(s.StartedAt), encodeTime(s.CompletedAt),
	}, nil
}

// AddSession inserts a new session row.
func (db *DB) AddSession(ctx context.Context, s *game.Session) error {
	args, err := sessionRowArgs(s)
	if err != nil {
		return err
	}
	args = append([]interface{}{s.ID.String()}, args...)
	_, err = db.ExecContext(ctx, `
		INSERT INTO sessions (id, mode, max_players, max_rounds, participants,
		                      created_at, last_updated_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to add session: %v", err)
	}
	return nil
}

// UpdateSession overwrites an existing session row.
func (db *DB) UpdateSession(ctx context.Context, s *game.Session) error {
	args, err := sessionRowArgs(s)
	if err != nil {
		return err
	}
	args = append(args, s.ID.String())
	res, err := db.ExecContext(ctx, `
		UPDATE sessions SET mode = ?, max_players = ?, max_rounds = ?, participants = ?,
		                    created_at = ?, last_updated_at = ?, started_at = ?, completed_at = ?
		WHERE id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to update session: %v", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", s.ID, game.ErrNotFound)
	}
	return nil
}

// GetActiveSessions returns sessions that are started but not yet completed.
func (db *DB) GetActiveSessions(ctx context.Context) ([]*game.Session, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id FROM sessions WHERE started_at != '' AND completed_at = ''
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %v", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid session id %q: %v", raw, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sessions := make([]*game.Session, 0, len(ids))
	for _, id := range ids {
		s, err := db.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// AddRoundLog appends a resolved-round record.
func (db *DB) AddRoundLog(ctx context.Context, log *game.RoundLog) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO round_logs (session_id, round_number, shared_card_index,
		                        winner_id, winner_card_index, matching_symbol,
		                        logged_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, log.SessionID.String(), log.RoundNumber, log.SharedCardIndex,
		log.WinnerID, log.WinnerCardIndex, log.MatchingSymbol,
		encodeTime(log.LoggedAt), log.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to add round log: %v", err)
	}
	return nil
}

// GetRoundLogs returns a session's round logs ordered by round number.
func (db *DB) GetRoundLogs(ctx context.Context, sessionID uuid.UUID) ([]*game.RoundLog, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT round_number, shared_card_index, winner_id, winner_card_index,
		       matching_symbol, logged_at, duration_ms
		FROM round_logs WHERE session_id = ? ORDER BY round_number
	`, sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get round logs: %v", err)
	}
	defer rows.Close()

	var logs []*game.RoundLog
	for rows.Next() {
		l := &game.RoundLog{SessionID: sessionID}
		var loggedAt string
		var durationMs int64
		if err := rows.Scan(&l.RoundNumber, &l.SharedCardIndex, &l.WinnerID,
			&l.WinnerCardIndex, &l.MatchingSymbol, &loggedAt, &durationMs); err != nil {
			return nil, err
		}
		if l.LoggedAt, err = decodeTime(loggedAt); err != nil {
			return nil, err
		}
		l.Duration = time.Duration(durationMs) * time.Millisecond
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// GetEntry returns a player's leaderboard entry or game.ErrNotFound.
func (db *DB) GetEntry(ctx context.Context, playerID string) (*game.LeaderboardEntry, error) {
	var e game.LeaderboardEntry
	var lastUpdatedAt string
	err := db.QueryRowContext(ctx, `
		SELECT player_id, total_points, games_played, games_won, last_updated_at
		FROM leaderboard WHERE player_id = ?
	`, playerID).Scan(&e.PlayerID, &e.TotalPoints, &e.GamesPlayed, &e.GamesWon, &lastUpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("leaderboard entry %s: %w", playerID, game.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard entry: %v", err)
	}
	if e.LastUpdatedAt, err = decodeTime(lastUpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// UpsertEntry creates or replaces a player's leaderboard entry.
func (db *DB) UpsertEntry(ctx context.Context, e *game.LeaderboardEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO leaderboard (player_id, total_points, games_played, games_won, last_updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(player_id) DO UPDATE SET
			total_points = excluded.total_points,
			games_played = excluded.games_played,
			games_won = excluded.games_won,
			last_updated_at = excluded.last_updated_at
	`, e.PlayerID, e.TotalPoints, e.GamesPlayed, e.GamesWon, encodeTime(e.LastUpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert leaderboard entry: %v", err)
	}
	return nil
}

// GetTop returns the top entries ordered by total points.
func (db *DB) GetTop(ctx context.Context, count int) ([]*game.LeaderboardEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT player_id, total_points, games_played, games_won, last_updated_at
		FROM leaderboard ORDER BY total_points DESC, games_won DESC, player_id
		LIMIT ?
	`, count)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %v", err)
	}
	defer rows.Close()

	var entries []*game.LeaderboardEntry
	for rows.Next() {
		var e game.LeaderboardEntry
		var lastUpdatedAt string
		if err := rows.Scan(&e.PlayerID, &e.TotalPoints, &e.GamesPlayed, &e.GamesWon, &lastUpdatedAt); err != nil {
			return nil, err
		}
		if e.LastUpdatedAt, err = decodeTime(lastUpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
