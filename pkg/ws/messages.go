package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"spotrace-backend/pkg/server"
)

// Envelope is the inbound frame: a correlation id, a method name and the
// method's arguments object.
type Envelope struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response is the outbound reply to one Envelope.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *WireError  `json:"error,omitempty"`
}

// WireError carries a protocol or domain error reason to the client.
type WireError struct {
	Reason string `json:"reason"`
}

// EventFrame is an unsolicited server-to-group broadcast.
type EventFrame struct {
	Event   string      `json:"event"`
	GameID  string      `json:"gameId"`
	Payload interface{} `json:"payload"`
}

// Client-invokable methods.
const (
	MethodCreateGame  = "CreateGame"
	MethodJoinGame    = "JoinGame"
	MethodStartGame   = "StartGame"
	MethodClickSymbol = "ClickSymbol"
)

// Broadcast event names.
const (
	EventRoundStart   = "RoundStart"
	EventRoundResult  = "RoundResult"
	EventGameOver     = "GameOver"
	EventPlayerJoined = "PlayerJoined"
)

// CreateGameReq asks for a new session.
type CreateGameReq struct {
	Mode       string `json:"mode"`
	MaxPlayers int    `json:"maxPlayers"`
	MaxRounds  int    `json:"maxRounds"`
}

// GameCreatedResp returns the scheduled session's parameters.
type GameCreatedResp struct {
	GameID     string `json:"gameId"`
	Mode       string `json:"mode"`
	MaxPlayers int    `json:"maxPlayers"`
	MaxRounds  int    `json:"maxRounds"`
}

// JoinGameReq adds the calling player to a session.
type JoinGameReq struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

// StartGameReq starts a session.
type StartGameReq struct {
	GameID string `json:"gameId"`
}

// ClickSymbolReq submits a symbol attempt.
type ClickSymbolReq struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
	SymbolID int    `json:"symbolId"`
}

// RoundStartEvent announces a dealt round to the group.
type RoundStartEvent struct {
	GameID            string         `json:"gameId"`
	RoundNumber       int            `json:"roundNumber"`
	SharedCardIndex   int            `json:"sharedCardIndex"`
	PlayerCardIndexes map[string]int `json:"playerCardIndexes"`
	StartedAtUtc      time.Time      `json:"startedAtUtc"`
}

// RoundResultEvent reports one attempt's outcome to the group. Optional
// fields are set only when the round resolved.
type RoundResultEvent struct {
	GameID               string         `json:"gameId"`
	RoundResolved        bool           `json:"roundResolved"`
	AttemptAccepted      bool           `json:"attemptAccepted"`
	ResolvingPlayerID    string         `json:"resolvingPlayerId,omitempty"`
	ResolvingCardIndex   *int           `json:"resolvingPlayerCardIndex,omitempty"`
	MatchingSymbolID     *int           `json:"matchingSymbolId,omitempty"`
	RoundNumber          int            `json:"roundNumber,omitempty"`
	ProcessedAtUtc       time.Time      `json:"processedAtUtc"`
	ResolutionDurationMs *int64         `json:"resolutionDurationMs,omitempty"`
	Scores               map[string]int `json:"scores,omitempty"`
	GameCompleted        bool           `json:"gameCompleted"`
}

// GameOverEvent carries the final standings to the group.
type GameOverEvent struct {
	GameID         string         `json:"gameId"`
	FinalScores    map[string]int `json:"finalScores"`
	CompletedAtUtc time.Time      `json:"completedAtUtc"`
}

// PlayerJoinedEvent announces a roster addition to the group.
type PlayerJoinedEvent struct {
	GameID      string `json:"gameId"`
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
}

// eventFrame converts an orchestrator session event to its wire frame.
// Unknown payload kinds yield nil and are not broadcast.
func eventFrame(sessionID uuid.UUID, ev *server.SessionEvent) *EventFrame {
	gameID := sessionID.String()
	switch p := ev.Payload.(type) {
	case server.RoundStartPayload:
		return &EventFrame{Event: EventRoundStart, GameID: gameID, Payload: RoundStartEvent{
			GameID:            gameID,
			RoundNumber:       p.RoundNumber,
			SharedCardIndex:   p.SharedCardIndex,
			PlayerCardIndexes: p.PlayerCardIndexes,
			StartedAtUtc:      p.StartedAt,
		}}
	case server.RoundResultPayload:
		out := RoundResultEvent{
			GameID:          gameID,
			RoundResolved:   p.RoundResolved,
			AttemptAccepted: p.AttemptAccepted,
			RoundNumber:     p.RoundNumber,
			ProcessedAtUtc:  p.ProcessedAt,
			GameCompleted:   p.GameCompleted,
		}
		if p.RoundResolved {
			out.ResolvingPlayerID = p.ResolvingPlayer
			card := p.ResolvingCard
			out.ResolvingCardIndex = &card
			symbol := p.MatchingSymbol
			out.MatchingSymbolID = &symbol
			ms := p.Duration.Milliseconds()
			out.ResolutionDurationMs = &ms
			out.Scores = p.Scores
		}
		return &EventFrame{Event: EventRoundResult, GameID: gameID, Payload: out}
	case server.GameOverPayload:
		return &EventFrame{Event: EventGameOver, GameID: gameID, Payload: GameOverEvent{
			GameID:         gameID,
			FinalScores:    p.FinalScores,
			CompletedAtUtc: p.CompletedAt,
		}}
	case server.PlayerJoinedPayload:
		return &EventFrame{Event: EventPlayerJoined, GameID: gameID, Payload: PlayerJoinedEvent{
			GameID:      gameID,
			PlayerID:    p.PlayerID,
			DisplayName: p.DisplayName,
		}}
	}
	return nil
}
