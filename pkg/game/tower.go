package game

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/decred/slog"

	"spotrace-backend/pkg/deck"
	"spotrace-backend/pkg/statemachine"
)

// TowerStateFn is a tower engine state function.
type TowerStateFn = statemachine.StateFn[TowerEngine]

// EngineConfig holds configuration for a new game engine.
type EngineConfig struct {
	Log slog.Logger
	// MaxRounds overrides the session's round cap when positive.
	MaxRounds int
	// Shuffle applies a Fisher-Yates permutation to the deck order.
	Shuffle bool
	// Seed drives the shuffle deterministically when non-zero; zero seeds
	// from the clock.
	Seed int64
}

// Engine is the uniform operation set shared by all game modes.
type Engine interface {
	StartNextRound(now time.Time) (*RoundState, error)
	RegisterAttempt(playerID string, symbolID int, now time.Time) (RoundResolution, error)
	ScoreSnapshot(now time.Time) ScoreSnapshot
	CurrentRound() *RoundState
	RoundNumber() int
	GameOver() bool
}

// NewEngine builds the engine for the session's mode.
func NewEngine(session *Session, design *deck.Design, cfg EngineConfig) (Engine, error) {
	switch session.Mode {
	case ModeTower:
		return NewTowerEngine(session, design, cfg)
	case ModeWell:
		return nil, fmt.Errorf("%w: %s", ErrModeNotSupported, session.Mode)
	}
	return nil, fmt.Errorf("%w: %s", ErrModeNotSupported, session.Mode)
}

// TowerEngine runs the tower race for one session: every round it deals one
// shared tower card plus one card per participant, and the first participant
// to click the symbol their card shares with the tower card takes the round.
// It lives only between session start and completion and is never persisted.
// Callers serialize access; the orchestrator invokes it under the session
// lock only.
type TowerEngine struct {
	log     slog.Logger
	session *Session
	design  *deck.Design

	maxRounds int
	scores    map[string]int

	// deckOrder is fixed at initialization; cursor walks it and wraps.
	deckOrder []int
	cursor    int

	roundNumber int
	current     *RoundState
	gameOver    bool

	machine *statemachine.Machine[TowerEngine]
}

// NewTowerEngine initializes a tower engine bound to the session's roster.
func NewTowerEngine(session *Session, design *deck.Design, cfg EngineConfig) (*TowerEngine, error) {
	if len(session.Participants) == 0 {
		return nil, ErrEmptyRoster
	}
	if len(session.Participants)+1 > design.CardCount() {
		return nil, fmt.Errorf("%w: %d participants exceed design capacity %d",
			ErrInvalidParams, len(session.Participants), design.CardCount())
	}

	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = session.MaxRounds
	}

	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}

	e := &TowerEngine{
		log:       log,
		session:   session,
		design:    design,
		maxRounds: maxRounds,
		scores:    make(map[string]int, len(session.Participants)),
		deckOrder: make([]int, design.CardCount()),
	}
	for _, p := range session.Participants {
		e.scores[p] = 0
	}
	for i := range e.deckOrder {
		e.deckOrder[i] = i
	}
	if cfg.Shuffle {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(e.deckOrder), func(i, j int) {
			e.deckOrder[i], e.deckOrder[j] = e.deckOrder[j], e.deckOrder[i]
		})
	}

	e.machine = statemachine.New(e, towerStateReady)
	log.Debugf("Tower engine ready for session %s: %d players, %d rounds, %d cards",
		session.ID, len(session.Participants), maxRounds, design.CardCount())
	return e, nil
}

// towerStateReady waits for the first round to be dealt.
func towerStateReady(e *TowerEngine) TowerStateFn {
	if e.current != nil {
		return towerStateInRound
	}
	return towerStateReady
}

// towerStateInRound holds while a round is open and unresolved.
func towerStateInRound(e *TowerEngine) TowerStateFn {
	if e.gameOver {
		return towerStateGameOver
	}
	if e.current == nil {
		return towerStateBetweenRounds
	}
	return towerStateInRound
}

// towerStateBetweenRounds holds after a resolution until the next deal.
func towerStateBetweenRounds(e *TowerEngine) TowerStateFn {
	if e.gameOver {
		return towerStateGameOver
	}
	if e.current != nil {
		return towerStateInRound
	}
	return towerStateBetweenRounds
}

// towerStateGameOver is terminal.
func towerStateGameOver(e *TowerEngine) TowerStateFn {
	return nil
}

// StateString returns a human-readable name of the current engine state.
func (e *TowerEngine) StateString() string {
	current := e.machine.Current()
	if current == nil {
		return "GAME_OVER"
	}
	switch fmt.Sprintf("%p", current) {
	case fmt.Sprintf("%p", TowerStateFn(towerStateReady)):
		return "READY"
	case fmt.Sprintf("%p", TowerStateFn(towerStateInRound)):
		return "IN_ROUND"
	case fmt.Sprintf("%p", TowerStateFn(towerStateBetweenRounds)):
		return "BETWEEN_ROUNDS"
	case fmt.Sprintf("%p", TowerStateFn(towerStateGameOver)):
		return "GAME_OVER"
	}
	return "UNKNOWN"
}

// nextCardIndexes draws count consecutive card indexes from the deck order,
// wrapping the cursor when the tail of the deck is shorter than the draw.
func (e *TowerEngine) nextCardIndexes(count int) []int {
	if e.cursor+count > len(e.deckOrder) {
		e.cursor = 0
	}
	out := make([]int, count)
	copy(out, e.deckOrder[e.cursor:e.cursor+count])
	e.cursor += count
	return out
}

// StartNextRound deals the shared card and one card per participant and opens
// the next round.
func (e *TowerEngine) StartNextRound(now time.Time) (*RoundState, error) {
	if e.gameOver {
		return nil, ErrGameOverAlready
	}
	if e.current != nil && !e.current.Resolved() {
		return nil, fmt.Errorf("%w: round %d", ErrPreviousUnresolved, e.current.RoundNumber)
	}

	participants := e.session.Participants
	draw := e.nextCardIndexes(len(participants) + 1)

	// The draw walks a permutation without repetition, so the shared card
	// and all player cards are pairwise distinct. Double-check anyway:
	// handing two players the same card would break the one-winner rule.
	seen := make(map[int]bool, len(draw))
	for _, c := range draw {
		if seen[c] {
			return nil, fmt.Errorf("duplicate card %d in round deal", c)
		}
		seen[c] = true
	}

	e.roundNumber++
	round := &RoundState{
		RoundNumber:       e.roundNumber,
		SharedCardIndex:   draw[0],
		PlayerCardIndexes: make(map[string]int, len(participants)),
		StartedAt:         now,
	}
	for i, p := range participants {
		round.PlayerCardIndexes[p] = draw[i+1]
	}
	e.current = round
	e.machine.Dispatch(towerStateInRound)

	e.log.Debugf("Session %s round %d: shared card %d, %d player cards",
		e.session.ID, e.roundNumber, round.SharedCardIndex, len(participants))
	return round, nil
}

// RegisterAttempt records a symbol click. The first attempt that names the
// symbol shared between the player's card and the tower card resolves the
// round and scores a point; any other symbol present on the player's card is
// accepted but changes nothing.
func (e *TowerEngine) RegisterAttempt(playerID string, symbolID int, now time.Time) (RoundResolution, error) {
	if e.gameOver || e.current == nil {
		return RoundResolution{}, ErrNoActiveRound
	}
	cardIdx, ok := e.current.PlayerCardIndexes[playerID]
	if !ok {
		return RoundResolution{}, fmt.Errorf("%w: %s", ErrNotParticipant, playerID)
	}

	matching, err := e.design.CommonSymbol(e.current.SharedCardIndex, cardIdx)
	if err != nil {
		return RoundResolution{}, fmt.Errorf("design lookup failed: %w", err)
	}
	accepted, err := e.design.CardHasSymbol(cardIdx, symbolID)
	if err != nil {
		return RoundResolution{}, fmt.Errorf("design lookup failed: %w", err)
	}

	res := RoundResolution{
		AttemptAccepted: accepted,
		RoundNumber:     e.current.RoundNumber,
		SharedCardIndex: e.current.SharedCardIndex,
	}
	if !accepted || symbolID != matching {
		return res, nil
	}

	// First correct attempt under the session lock wins the round.
	e.current.Winner = playerID
	e.current.ResolvedAt = now
	e.scores[playerID]++

	res.RoundResolved = true
	res.ResolvedBy = playerID
	res.PlayerCardIndex = cardIdx
	res.MatchingSymbol = matching
	res.Duration = now.Sub(e.current.StartedAt)

	e.current = nil
	if e.roundNumber >= e.maxRounds {
		e.gameOver = true
		e.machine.Dispatch(towerStateGameOver)
		e.log.Debugf("Session %s game over after round %d, won by %s",
			e.session.ID, res.RoundNumber, playerID)
	} else {
		e.machine.Dispatch(towerStateBetweenRounds)
	}
	return res, nil
}

// ScoreSnapshot returns an immutable copy of the score table.
func (e *TowerEngine) ScoreSnapshot(now time.Time) ScoreSnapshot {
	scores := make(map[string]int, len(e.scores))
	for p, s := range e.scores {
		scores[p] = s
	}
	return ScoreSnapshot{Scores: scores, CapturedAt: now}
}

// CurrentRound returns the open round, or nil between rounds.
func (e *TowerEngine) CurrentRound() *RoundState {
	return e.current
}

// RoundNumber returns the number of the most recently dealt round.
func (e *TowerEngine) RoundNumber() int {
	return e.roundNumber
}

// GameOver reports whether the final round has been resolved.
func (e *TowerEngine) GameOver() bool {
	return e.gameOver
}
