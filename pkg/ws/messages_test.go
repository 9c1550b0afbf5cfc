package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotrace-backend/pkg/server"
)

func TestEventFrameRoundStart(t *testing.T) {
	sid := uuid.New()
	now := time.Now().UTC()
	frame := eventFrame(sid, &server.SessionEvent{
		Type: server.SessionEventRoundStart,
		Payload: server.RoundStartPayload{
			RoundNumber:       3,
			SharedCardIndex:   7,
			PlayerCardIndexes: map[string]int{"alice": 1, "bob": 2},
			StartedAt:         now,
		},
	})
	require.NotNil(t, frame)
	assert.Equal(t, EventRoundStart, frame.Event)
	assert.Equal(t, sid.String(), frame.GameID)

	ev := frame.Payload.(RoundStartEvent)
	assert.Equal(t, 3, ev.RoundNumber)
	assert.Equal(t, 7, ev.SharedCardIndex)
	assert.Equal(t, map[string]int{"alice": 1, "bob": 2}, ev.PlayerCardIndexes)
}

func TestEventFrameRoundResultUnresolved(t *testing.T) {
	sid := uuid.New()
	frame := eventFrame(sid, &server.SessionEvent{
		Type: server.SessionEventRoundResult,
		Payload: server.RoundResultPayload{
			RoundResolved:   false,
			AttemptAccepted: true,
			RoundNumber:     2,
		},
	})
	require.NotNil(t, frame)

	// Resolution-only fields must be absent on the wire.
	data, err := json.Marshal(frame.Payload)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "resolvingPlayerId")
	assert.NotContains(t, raw, "resolvingPlayerCardIndex")
	assert.NotContains(t, raw, "matchingSymbolId")
	assert.NotContains(t, raw, "resolutionDurationMs")
	assert.NotContains(t, raw, "scores")
	assert.Equal(t, true, raw["attemptAccepted"])
	assert.Equal(t, false, raw["roundResolved"])
}

func TestEventFrameRoundResultResolved(t *testing.T) {
	sid := uuid.New()
	frame := eventFrame(sid, &server.SessionEvent{
		Type: server.SessionEventRoundResult,
		Payload: server.RoundResultPayload{
			RoundResolved:   true,
			AttemptAccepted: true,
			ResolvingPlayer: "alice",
			ResolvingCard:   4,
			MatchingSymbol:  9,
			RoundNumber:     1,
			Duration:        1500 * time.Millisecond,
			Scores:          map[string]int{"alice": 1},
			GameCompleted:   true,
		},
	})
	require.NotNil(t, frame)

	ev := frame.Payload.(RoundResultEvent)
	assert.Equal(t, "alice", ev.ResolvingPlayerID)
	require.NotNil(t, ev.ResolvingCardIndex)
	assert.Equal(t, 4, *ev.ResolvingCardIndex)
	require.NotNil(t, ev.MatchingSymbolID)
	assert.Equal(t, 9, *ev.MatchingSymbolID)
	require.NotNil(t, ev.ResolutionDurationMs)
	assert.Equal(t, int64(1500), *ev.ResolutionDurationMs)
	assert.Equal(t, map[string]int{"alice": 1}, ev.Scores)
	assert.True(t, ev.GameCompleted)
}

func TestEventFrameGameOverAndPlayerJoined(t *testing.T) {
	sid := uuid.New()
	now := time.Now().UTC()

	frame := eventFrame(sid, &server.SessionEvent{
		Type:    server.SessionEventGameOver,
		Payload: server.GameOverPayload{FinalScores: map[string]int{"alice": 2}, CompletedAt: now},
	})
	require.NotNil(t, frame)
	assert.Equal(t, EventGameOver, frame.Event)
	assert.Equal(t, map[string]int{"alice": 2}, frame.Payload.(GameOverEvent).FinalScores)

	frame = eventFrame(sid, &server.SessionEvent{
		Type:    server.SessionEventPlayerJoined,
		Payload: server.PlayerJoinedPayload{PlayerID: "bob", DisplayName: "Bob"},
	})
	require.NotNil(t, frame)
	assert.Equal(t, EventPlayerJoined, frame.Event)
	assert.Equal(t, "Bob", frame.Payload.(PlayerJoinedEvent).DisplayName)
}

func TestEventFrameUnknownPayload(t *testing.T) {
	assert.Nil(t, eventFrame(uuid.New(), &server.SessionEvent{Type: "bogus", Payload: nil}))
}

func TestGroupName(t *testing.T) {
	sid := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	assert.Equal(t, "game:00000000000000000000000000000001", GroupName(sid))

	// Distinct sessions get distinct groups.
	assert.NotEqual(t, GroupName(uuid.New()), GroupName(uuid.New()))
}
