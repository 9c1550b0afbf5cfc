package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"spotrace-backend/pkg/deck"
	"spotrace-backend/pkg/game"
	"spotrace-backend/pkg/logging"
)

// Orchestrator-level errors. Domain-state errors come from pkg/game.
var (
	// ErrStore wraps any collaborator store failure. The in-flight
	// operation aborts; in-memory state that already advanced is kept and
	// re-persisted by the next successful operation.
	ErrStore = errors.New("store error")
	// ErrSessionNotActive is returned for gameplay operations on a
	// session with no live runtime.
	ErrSessionNotActive = errors.New("session has no active game")
	// ErrNotCompleted is returned by PersistEndGame when the session is
	// neither live nor completed.
	ErrNotCompleted = errors.New("session not completed")
)

// runtime bundles the live pieces of one started session.
type runtime struct {
	session *game.Session
	engine  game.Engine
}

// Server is the process-wide session registry and orchestrator. Every
// operation on a session runs under that session's dedicated mutex for its
// full duration, store calls included, so per-session state transitions are
// observed atomically. Operations on distinct sessions never contend.
type Server struct {
	log        slog.Logger
	logBackend *logging.Backend
	cfg        Config
	stores     Stores
	design     *deck.Design
	validator  *Validator
	events     *EventProcessor

	mu     sync.RWMutex
	active map[uuid.UUID]*runtime
	// locks are created on first use per session id and never dropped, so
	// every caller for a given session always contends on the same mutex.
	// A retained lock for a finished session costs memory only.
	locks map[uuid.UUID]*sync.Mutex
}

// NewServer creates the orchestrator, builds the shared deck design, and
// starts the event processor.
func NewServer(cfg Config, stores Stores, logBackend *logging.Backend) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	design, err := deck.NewDesign(cfg.DesignOrder)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := logBackend.Logger("SRVR")
	s := &Server{
		log:        log,
		logBackend: logBackend,
		cfg:        cfg,
		stores:     stores,
		design:     design,
		validator:  NewValidator(cfg),
		events:     NewEventProcessor(logBackend.Logger("EVNT"), 1000, 3),
		active:     make(map[uuid.UUID]*runtime),
		locks:      make(map[uuid.UUID]*sync.Mutex),
	}
	s.events.Start()

	log.Infof("Server ready: design order %d (%d cards, %d symbols/card)",
		design.Order(), design.CardCount(), design.SymbolsPerCard())
	return s, nil
}

// Events exposes the event processor so the dispatcher can wire itself in as
// the broadcaster.
func (s *Server) Events() *EventProcessor {
	return s.events
}

// Design returns the shared immutable deck design.
func (s *Server) Design() *deck.Design {
	return s.design
}

// Config returns the loaded configuration.
func (s *Server) Config() Config {
	return s.cfg
}

// sessionLock returns the session's mutex, creating it on first use.
func (s *Server) sessionLock(sessionID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// acquire takes the session's lock unless the context was already canceled.
// Once the lock is held, cancellation is advisory: the operation runs to a
// consistent state.
func (s *Server) acquire(ctx context.Context, sessionID uuid.UUID) (*sync.Mutex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := s.sessionLock(sessionID)
	l.Lock()
	return l, nil
}

// getRuntime returns the live runtime for a session, if any.
func (s *Server) getRuntime(sessionID uuid.UUID) (*runtime, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.active[sessionID]
	return rt, ok
}

// activeSessionIDs snapshots the ids of all live runtimes.
func (s *Server) activeSessionIDs() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	return ids
}

// publish stamps and enqueues a session event. Callers invoke it while still
// holding the session lock so events enter the queue in materialization
// order; the worker pool delivers them afterwards.
func (s *Server) publish(sessionID uuid.UUID, payload EventPayload, now time.Time) {
	s.events.PublishEvent(&SessionEvent{
		Type:      payload.Kind(),
		SessionID: sessionID,
		Payload:   payload,
		Timestamp: now,
	})
}

// storeErr wraps a collaborator failure as a generic store error.
func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStore, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, game.ErrNotFound)
}

// TopLeaderboard returns the best-ranked leaderboard entries. Count is
// clamped to [1,100].
func (s *Server) TopLeaderboard(ctx context.Context, count int) ([]*game.LeaderboardEntry, error) {
	if count < 1 {
		count = 10
	}
	if count > 100 {
		count = 100
	}
	entries, err := s.stores.Leaderboard.GetTop(ctx, count)
	if err != nil {
		return nil, storeErr(err)
	}
	return entries, nil
}

// RegisterPlayer creates a player record if one does not exist yet.
func (s *Server) RegisterPlayer(ctx context.Context, playerID, displayName string) (*game.Player, error) {
	if existing, err := s.stores.Players.GetPlayer(ctx, playerID); err == nil {
		return existing, nil
	} else if !isNotFound(err) {
		return nil, storeErr(err)
	}

	player, err := game.NewPlayer(playerID, displayName, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.stores.Players.AddPlayer(ctx, player); err != nil {
		return nil, storeErr(err)
	}
	s.log.Debugf("Registered player %s (%q)", playerID, displayName)
	return player, nil
}

// Shutdown finalizes every live session as if each had received
// PersistEndGame, then stops the event processor.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, id := range s.activeSessionIDs() {
		if err := s.PersistEndGame(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.events.Stop()
	return firstErr
}
