package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"spotrace-backend/pkg/game"
)

// CreateGame schedules a new session. Zero maxPlayers/maxRounds select the
// configured defaults; out-of-bounds values are rejected.
func (s *Server) CreateGame(ctx context.Context, mode game.Mode, maxPlayers, maxRounds int) (*game.Session, error) {
	if maxPlayers == 0 {
		maxPlayers = s.cfg.DefaultMaxPlayers
	}
	if maxRounds == 0 {
		maxRounds = s.cfg.DefaultMaxRounds
	}
	if maxPlayers < s.cfg.MinPlayers || maxPlayers > s.cfg.MaxPlayers {
		return nil, fmt.Errorf("%w: maxPlayers %d not in [%d,%d]",
			game.ErrInvalidParams, maxPlayers, s.cfg.MinPlayers, s.cfg.MaxPlayers)
	}
	if maxRounds < s.cfg.MinRounds || maxRounds > s.cfg.MaxRounds {
		return nil, fmt.Errorf("%w: maxRounds %d not in [%d,%d]",
			game.ErrInvalidParams, maxRounds, s.cfg.MinRounds, s.cfg.MaxRounds)
	}

	sessionID := uuid.New()
	lock, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	now := time.Now().UTC()
	session, err := game.ScheduleSession(sessionID, mode, maxPlayers, maxRounds, now)
	if err != nil {
		return nil, err
	}
	if err := s.stores.Sessions.AddSession(ctx, session); err != nil {
		return nil, storeErr(err)
	}

	s.log.Infof("Created %s session %s (players<=%d, rounds=%d)",
		mode, sessionID, maxPlayers, maxRounds)
	return session, nil
}

// JoinGame adds a known player to a not-yet-started session and bumps the
// player's activity timestamp.
func (s *Server) JoinGame(ctx context.Context, sessionID uuid.UUID, playerID string) (*game.Session, error) {
	lock, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	session, err := s.stores.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, wrapLookup(err)
	}
	player, err := s.stores.Players.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, wrapLookup(err)
	}
	if err := s.validator.EnsurePlayerCanJoin(session, playerID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := session.AddParticipant(playerID, now); err != nil {
		return nil, err
	}
	player.Touch(now)

	if err := s.stores.Sessions.UpdateSession(ctx, session); err != nil {
		return nil, storeErr(err)
	}
	if err := s.stores.Players.UpdatePlayer(ctx, player); err != nil {
		return nil, storeErr(err)
	}

	s.publish(sessionID, PlayerJoinedPayload{
		PlayerID:    playerID,
		DisplayName: player.DisplayName,
	}, now)

	s.log.Debugf("Player %s joined session %s (%d/%d)",
		playerID, sessionID, len(session.Participants), session.MaxPlayers)
	return session, nil
}

// StartGame starts the session, builds its engine against the shared deck
// design, deals the first round, and registers the live runtime.
func (s *Server) StartGame(ctx context.Context, sessionID uuid.UUID) (*game.RoundState, error) {
	lock, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	if _, live := s.getRuntime(sessionID); live {
		return nil, game.ErrAlreadyStarted
	}
	session, err := s.stores.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, wrapLookup(err)
	}
	if err := s.validator.EnsureSessionCanStart(session); err != nil {
		return nil, err
	}

	engine, err := game.NewEngine(session, s.design, game.EngineConfig{
		Log:     s.logBackend.Logger("GAME"),
		Shuffle: s.cfg.ShuffleDeck,
		Seed:    s.cfg.RandomSeed,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := session.Start(now); err != nil {
		return nil, err
	}
	round, err := engine.StartNextRound(now)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.active[sessionID] = &runtime{session: session, engine: engine}
	s.mu.Unlock()

	if err := s.stores.Sessions.UpdateSession(ctx, session); err != nil {
		return nil, storeErr(err)
	}

	s.publish(sessionID, RoundStartPayload{
		RoundNumber:       round.RoundNumber,
		SharedCardIndex:   round.SharedCardIndex,
		PlayerCardIndexes: round.CardsSnapshot(),
		StartedAt:         round.StartedAt,
	}, now)

	s.log.Infof("Session %s started with %d players", sessionID, len(session.Participants))
	return round, nil
}

// wrapLookup passes not-found errors through untouched and wraps everything
// else as a store failure.
func wrapLookup(err error) error {
	if isNotFound(err) {
		return err
	}
	return storeErr(err)
}
