package server

import (
	"context"
	"time"

	"github.com/google/uuid"

	"spotrace-backend/pkg/game"
)

// ClickOutcome is everything one ClickSymbol call produced: the resolution
// itself plus whatever followed it under the same lock (the next round's
// deal, or the final standings).
type ClickOutcome struct {
	Result game.RoundResolution
	// Scores is present exactly when the round resolved.
	Scores map[string]int
	// NextRound is set when the resolution opened a follow-up round.
	NextRound *game.RoundState
	// GameCompleted is true when this click ended the game; FinalScores
	// and CompletedAt are then set.
	GameCompleted bool
	FinalScores   map[string]int
	CompletedAt   time.Time
	ProcessedAt   time.Time
}

// ClickSymbol routes a player's symbol click into the session's engine. On a
// resolving click it logs the round, persists, and either finalizes the game
// or deals the next round, all under the session lock.
func (s *Server) ClickSymbol(ctx context.Context, sessionID uuid.UUID, playerID string, symbolID int) (*ClickOutcome, error) {
	lock, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	rt, live := s.getRuntime(sessionID)
	if !live {
		return nil, ErrSessionNotActive
	}
	if err := s.validator.EnsureAttemptAllowed(rt.session, playerID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := rt.engine.RegisterAttempt(playerID, symbolID, now)
	if err != nil {
		return nil, err
	}

	outcome := &ClickOutcome{Result: res, ProcessedAt: now}
	if !res.RoundResolved {
		s.publish(sessionID, RoundResultPayload{
			RoundResolved:   false,
			AttemptAccepted: res.AttemptAccepted,
			RoundNumber:     res.RoundNumber,
			ProcessedAt:     now,
		}, now)
		return outcome, nil
	}

	log := game.RoundLog{
		SessionID:       sessionID,
		RoundNumber:     res.RoundNumber,
		SharedCardIndex: res.SharedCardIndex,
		WinnerID:        res.ResolvedBy,
		WinnerCardIndex: res.PlayerCardIndex,
		MatchingSymbol:  res.MatchingSymbol,
		LoggedAt:        now,
		Duration:        res.Duration,
	}
	if err := rt.session.RegisterRound(log, now); err != nil {
		return nil, err
	}
	if err := s.stores.RoundLogs.AddRoundLog(ctx, &log); err != nil {
		return nil, storeErr(err)
	}
	if err := s.stores.Sessions.UpdateSession(ctx, rt.session); err != nil {
		return nil, storeErr(err)
	}

	snapshot := rt.engine.ScoreSnapshot(now)
	outcome.Scores = snapshot.Scores

	completed := rt.engine.GameOver()
	s.publish(sessionID, RoundResultPayload{
		RoundResolved:   true,
		AttemptAccepted: true,
		ResolvingPlayer: res.ResolvedBy,
		ResolvingCard:   res.PlayerCardIndex,
		MatchingSymbol:  res.MatchingSymbol,
		RoundNumber:     res.RoundNumber,
		ProcessedAt:     now,
		Duration:        res.Duration,
		Scores:          snapshot.Scores,
		GameCompleted:   completed,
	}, now)

	if completed {
		final, err := s.finalizeLocked(ctx, rt, now)
		if err != nil {
			return nil, err
		}
		outcome.GameCompleted = true
		outcome.FinalScores = final.Scores
		outcome.CompletedAt = rt.session.CompletedAt
		return outcome, nil
	}

	next, err := rt.engine.StartNextRound(now)
	if err != nil {
		return nil, err
	}
	outcome.NextRound = next
	s.publish(sessionID, RoundStartPayload{
		RoundNumber:       next.RoundNumber,
		SharedCardIndex:   next.SharedCardIndex,
		PlayerCardIndexes: next.CardsSnapshot(),
		StartedAt:         next.StartedAt,
	}, now)
	return outcome, nil
}

// GetScoresSnapshot returns the live score table of an active session.
func (s *Server) GetScoresSnapshot(ctx context.Context, sessionID uuid.UUID) (game.ScoreSnapshot, error) {
	lock, err := s.acquire(ctx, sessionID)
	if err != nil {
		return game.ScoreSnapshot{}, err
	}
	defer lock.Unlock()

	rt, live := s.getRuntime(sessionID)
	if !live {
		return game.ScoreSnapshot{}, ErrSessionNotActive
	}
	return rt.engine.ScoreSnapshot(time.Now().UTC()), nil
}

// PersistEndGame finalizes a live session, or verifies that an already-dead
// one was completed.
func (s *Server) PersistEndGame(ctx context.Context, sessionID uuid.UUID) error {
	lock, err := s.acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	rt, live := s.getRuntime(sessionID)
	if live {
		_, err := s.finalizeLocked(ctx, rt, time.Now().UTC())
		return err
	}

	session, err := s.stores.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return wrapLookup(err)
	}
	if !session.IsCompleted() {
		return ErrNotCompleted
	}
	return nil
}

// finalizeLocked runs the atomic end-of-game sequence under the session
// lock: complete the session, fold results into player records and the
// leaderboard, persist everything, drop the runtime, announce game over.
func (s *Server) finalizeLocked(ctx context.Context, rt *runtime, now time.Time) (game.ScoreSnapshot, error) {
	snapshot := rt.engine.ScoreSnapshot(now)

	if !rt.session.IsCompleted() {
		if err := rt.session.Complete(now); err != nil {
			return snapshot, err
		}
	}
	winners := snapshot.Winners()

	for _, playerID := range rt.session.Participants {
		player, err := s.stores.Players.GetPlayer(ctx, playerID)
		if err != nil {
			return snapshot, wrapLookup(err)
		}
		player.RegisterGameResult(winners[playerID], now)
		if err := s.stores.Players.UpdatePlayer(ctx, player); err != nil {
			return snapshot, storeErr(err)
		}

		entry, err := s.stores.Leaderboard.GetEntry(ctx, playerID)
		if isNotFound(err) {
			entry = &game.LeaderboardEntry{PlayerID: playerID}
		} else if err != nil {
			return snapshot, storeErr(err)
		}
		entry.TotalPoints += snapshot.Scores[playerID]
		entry.GamesPlayed++
		if winners[playerID] {
			entry.GamesWon++
		}
		entry.LastUpdatedAt = now
		if err := s.stores.Leaderboard.UpsertEntry(ctx, entry); err != nil {
			return snapshot, storeErr(err)
		}
	}

	if err := s.stores.Sessions.UpdateSession(ctx, rt.session); err != nil {
		return snapshot, storeErr(err)
	}

	// The lock entry is retained: the caller still holds that mutex, and
	// dropping it here would let a late caller mint a fresh one and overlap
	// the finalize tail.
	s.mu.Lock()
	delete(s.active, rt.session.ID)
	s.mu.Unlock()

	s.publish(rt.session.ID, GameOverPayload{
		FinalScores: snapshot.Scores,
		CompletedAt: rt.session.CompletedAt,
	}, now)

	s.log.Infof("Session %s finalized, %d participants", rt.session.ID, len(rt.session.Participants))
	return snapshot, nil
}
