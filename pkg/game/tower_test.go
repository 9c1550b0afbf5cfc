package game

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"spotrace-backend/pkg/deck"
)

func testEngine(t *testing.T, players []string, maxRounds int, cfg EngineConfig) (*TowerEngine, *deck.Design) {
	t.Helper()
	now := time.Now().UTC()
	s, err := ScheduleSession(uuid.New(), ModeTower, CapMaxPlayers, maxRounds, now)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range players {
		if err := s.AddParticipant(p, now); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Start(now); err != nil {
		t.Fatal(err)
	}
	d, err := deck.NewDesign(3)
	if err != nil {
		t.Fatal(err)
	}
	e, err := NewTowerEngine(s, d, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return e, d
}

// winRound resolves the current round by having playerID click the symbol
// their card shares with the tower card.
func winRound(t *testing.T, e *TowerEngine, d *deck.Design, playerID string, now time.Time) RoundResolution {
	t.Helper()
	round := e.CurrentRound()
	if round == nil {
		t.Fatal("no active round")
	}
	matching, err := d.CommonSymbol(round.SharedCardIndex, round.PlayerCardIndexes[playerID])
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.RegisterAttempt(playerID, matching, now)
	if err != nil {
		t.Fatal(err)
	}
	if !res.RoundResolved || res.ResolvedBy != playerID {
		t.Fatalf("expected %s to resolve the round, got %+v", playerID, res)
	}
	return res
}

func TestNewTowerEngineValidation(t *testing.T) {
	now := time.Now().UTC()
	d, _ := deck.NewDesign(2) // 7 cards

	s, _ := ScheduleSession(uuid.New(), ModeTower, 8, 5, now)
	if _, err := NewTowerEngine(s, d, EngineConfig{}); !errors.Is(err, ErrEmptyRoster) {
		t.Errorf("empty roster: expected ErrEmptyRoster, got %v", err)
	}

	// 7 players plus the tower card need 8 cards; the order-2 design has 7.
	for i := 0; i < 7; i++ {
		s.AddParticipant(string(rune('a'+i)), now)
	}
	s.Start(now)
	if _, err := NewTowerEngine(s, d, EngineConfig{}); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("roster beyond design capacity: expected ErrInvalidParams, got %v", err)
	}
}

func TestNewEngineModeDispatch(t *testing.T) {
	now := time.Now().UTC()
	d, _ := deck.NewDesign(3)

	s, _ := ScheduleSession(uuid.New(), ModeWell, 4, 5, now)
	s.AddParticipant("alice", now)
	s.Start(now)
	if _, err := NewEngine(s, d, EngineConfig{}); !errors.Is(err, ErrModeNotSupported) {
		t.Errorf("well mode: expected ErrModeNotSupported, got %v", err)
	}

	s2, _ := ScheduleSession(uuid.New(), ModeTower, 4, 5, now)
	s2.AddParticipant("alice", now)
	s2.Start(now)
	if _, err := NewEngine(s2, d, EngineConfig{}); err != nil {
		t.Errorf("tower mode: %v", err)
	}
}

func TestStartNextRoundDealsDistinctCards(t *testing.T) {
	e, _ := testEngine(t, []string{"alice", "bob", "carol"}, 5, EngineConfig{})
	now := time.Now().UTC()

	round, err := e.StartNextRound(now)
	if err != nil {
		t.Fatal(err)
	}
	if round.RoundNumber != 1 {
		t.Errorf("round number %d, expected 1", round.RoundNumber)
	}
	if len(round.PlayerCardIndexes) != 3 {
		t.Fatalf("expected 3 player cards, got %d", len(round.PlayerCardIndexes))
	}
	seen := map[int]bool{round.SharedCardIndex: true}
	for p, c := range round.PlayerCardIndexes {
		if seen[c] {
			t.Errorf("card %d dealt twice (player %s)", c, p)
		}
		seen[c] = true
	}

	// A second deal while the round is open must fail.
	if _, err := e.StartNextRound(now); !errors.Is(err, ErrPreviousUnresolved) {
		t.Errorf("expected ErrPreviousUnresolved, got %v", err)
	}
}

func TestRegisterAttemptFlow(t *testing.T) {
	e, d := testEngine(t, []string{"alice", "bob"}, 3, EngineConfig{})
	now := time.Now().UTC()

	if _, err := e.RegisterAttempt("alice", 0, now); !errors.Is(err, ErrNoActiveRound) {
		t.Errorf("attempt before deal: expected ErrNoActiveRound, got %v", err)
	}

	round, err := e.StartNextRound(now)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.RegisterAttempt("mallory", 0, now); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("outsider attempt: expected ErrNotParticipant, got %v", err)
	}

	aliceCard := round.PlayerCardIndexes["alice"]
	matching, err := d.CommonSymbol(round.SharedCardIndex, aliceCard)
	if err != nil {
		t.Fatal(err)
	}

	// A wrong symbol that is on alice's card is accepted but resolves nothing.
	symbols, _ := d.Card(aliceCard)
	var wrong int = -1
	for _, s := range symbols {
		if s != matching {
			wrong = s
			break
		}
	}
	res, err := e.RegisterAttempt("alice", wrong, now)
	if err != nil {
		t.Fatal(err)
	}
	if !res.AttemptAccepted || res.RoundResolved {
		t.Errorf("wrong-symbol attempt: %+v", res)
	}

	// A symbol absent from alice's card is rejected outright.
	absent := -1
	for s := 0; s < d.SymbolCount(); s++ {
		has, _ := d.CardHasSymbol(aliceCard, s)
		if !has {
			absent = s
			break
		}
	}
	res, err = e.RegisterAttempt("alice", absent, now)
	if err != nil {
		t.Fatal(err)
	}
	if res.AttemptAccepted || res.RoundResolved {
		t.Errorf("absent-symbol attempt: %+v", res)
	}

	// The matching symbol resolves the round and scores a point.
	started := round.StartedAt
	res, err = e.RegisterAttempt("alice", matching, now.Add(2*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if !res.RoundResolved || res.ResolvedBy != "alice" || res.MatchingSymbol != matching {
		t.Fatalf("resolution: %+v", res)
	}
	if res.SharedCardIndex != round.SharedCardIndex || res.PlayerCardIndex != aliceCard {
		t.Errorf("resolution cards: %+v", res)
	}
	if res.Duration != now.Add(2*time.Second).Sub(started) {
		t.Errorf("duration %v", res.Duration)
	}
	if e.CurrentRound() != nil {
		t.Error("round still open after resolution")
	}
	snap := e.ScoreSnapshot(now)
	if snap.Scores["alice"] != 1 || snap.Scores["bob"] != 0 {
		t.Errorf("scores: %v", snap.Scores)
	}

	// A late correct click after resolution hits a closed round.
	if _, err := e.RegisterAttempt("bob", matching, now); !errors.Is(err, ErrNoActiveRound) {
		t.Errorf("late attempt: expected ErrNoActiveRound, got %v", err)
	}
}

func TestGameOverAfterFinalRound(t *testing.T) {
	e, d := testEngine(t, []string{"alice", "bob"}, 2, EngineConfig{})
	now := time.Now().UTC()

	for round := 1; round <= 2; round++ {
		if _, err := e.StartNextRound(now); err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		winRound(t, e, d, "alice", now)
	}

	if !e.GameOver() {
		t.Fatal("game not over after final round")
	}
	if got := e.StateString(); got != "GAME_OVER" {
		t.Errorf("state %q, expected GAME_OVER", got)
	}
	if _, err := e.StartNextRound(now); !errors.Is(err, ErrGameOverAlready) {
		t.Errorf("deal after game over: expected ErrGameOverAlready, got %v", err)
	}
	if _, err := e.RegisterAttempt("alice", 0, now); !errors.Is(err, ErrNoActiveRound) {
		t.Errorf("attempt after game over: expected ErrNoActiveRound, got %v", err)
	}
	snap := e.ScoreSnapshot(now)
	if snap.Scores["alice"] != 2 {
		t.Errorf("final scores: %v", snap.Scores)
	}
}

func TestEngineStateTransitions(t *testing.T) {
	e, d := testEngine(t, []string{"alice"}, 2, EngineConfig{})
	now := time.Now().UTC()

	if got := e.StateString(); got != "READY" {
		t.Errorf("initial state %q", got)
	}
	e.StartNextRound(now)
	if got := e.StateString(); got != "IN_ROUND" {
		t.Errorf("after deal: %q", got)
	}
	winRound(t, e, d, "alice", now)
	if got := e.StateString(); got != "BETWEEN_ROUNDS" {
		t.Errorf("after resolution: %q", got)
	}
	e.StartNextRound(now)
	winRound(t, e, d, "alice", now)
	if got := e.StateString(); got != "GAME_OVER" {
		t.Errorf("after final round: %q", got)
	}
}

func TestSeededShuffleIsDeterministic(t *testing.T) {
	deal := func(seed int64) []int {
		e, _ := testEngine(t, []string{"alice", "bob"}, 5, EngineConfig{Shuffle: true, Seed: seed})
		round, err := e.StartNextRound(time.Now().UTC())
		if err != nil {
			t.Fatal(err)
		}
		return []int{round.SharedCardIndex, round.PlayerCardIndexes["alice"], round.PlayerCardIndexes["bob"]}
	}

	a, b := deal(42), deal(42)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed, different deals: %v vs %v", a, b)
		}
	}
}

func TestDeckCursorWrapsAround(t *testing.T) {
	// Order-2 design has 7 cards; each round with 2 players draws 3. The
	// third round would need cards 6..8, so the cursor must wrap to 0.
	now := time.Now().UTC()
	s, _ := ScheduleSession(uuid.New(), ModeTower, 4, 10, now)
	s.AddParticipant("alice", now)
	s.AddParticipant("bob", now)
	s.Start(now)
	d, _ := deck.NewDesign(2)
	e, err := NewTowerEngine(s, d, EngineConfig{})
	if err != nil {
		t.Fatal(err)
	}

	var firstDeal []int
	for round := 1; round <= 4; round++ {
		st, err := e.StartNextRound(now)
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		deal := append([]int{st.SharedCardIndex},
			st.PlayerCardIndexes["alice"], st.PlayerCardIndexes["bob"])
		if round == 1 {
			firstDeal = deal
		}
		if round == 3 {
			// Unshuffled deck: the wrap restarts at the deck head.
			for i := range deal {
				if deal[i] != firstDeal[i] {
					t.Errorf("wrapped deal %v differs from first deal %v", deal, firstDeal)
					break
				}
			}
		}
		winRound(t, e, d, "alice", now)
	}
}

func TestScoreSnapshotIsACopy(t *testing.T) {
	e, _ := testEngine(t, []string{"alice"}, 3, EngineConfig{})
	snap := e.ScoreSnapshot(time.Now().UTC())
	snap.Scores["alice"] = 99
	again := e.ScoreSnapshot(time.Now().UTC())
	if again.Scores["alice"] != 0 {
		t.Error("snapshot aliases the engine score table")
	}
}
