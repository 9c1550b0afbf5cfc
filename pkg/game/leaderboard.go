package game

import "time"

// LeaderboardEntry is a player's cumulative standing across finished games.
// On finalize every participant's entry gains the session's final score as
// points, one game played, and one game won when the player holds the top
// score.
type LeaderboardEntry struct {
	PlayerID      string
	TotalPoints   int
	GamesPlayed   int
	GamesWon      int
	LastUpdatedAt time.Time
}
