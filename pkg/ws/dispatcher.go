package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/decred/slog"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"spotrace-backend/pkg/auth"
	"spotrace-backend/pkg/game"
	"spotrace-backend/pkg/server"
)

// Protocol error reasons surfaced to clients. Domain errors reuse these
// stable names so clients can branch without string matching.
const (
	ReasonBadRequest       = "BadRequest"
	ReasonUnknownMethod    = "UnknownMethod"
	ReasonUnauthorized     = "Unauthorized"
	ReasonNotFound         = "NotFound"
	ReasonAlreadyStarted   = "AlreadyStarted"
	ReasonAlreadyCompleted = "AlreadyCompleted"
	ReasonCapacity         = "Capacity"
	ReasonDuplicate        = "Duplicate"
	ReasonNotEnoughPlayers = "NotEnoughPlayers"
	ReasonNotParticipant   = "NotParticipant"
	ReasonNotActive        = "NotActive"
	ReasonNoActiveRound    = "NoActiveRound"
	ReasonGameOver         = "GameOver"
	ReasonStoreError       = "StoreError"
	ReasonCanceled         = "Canceled"
	ReasonInternal         = "Internal"
)

// Dispatcher owns connection admission, method routing into the
// orchestrator, and group membership. Lifecycle events reach clients through
// the hub, which the orchestrator's event processor drives.
type Dispatcher struct {
	srv    *server.Server
	hub    *Hub
	tokens auth.TokenValidator
	log    slog.Logger

	maxMessageBytes int64
	upgrader        websocket.Upgrader
}

// NewDispatcher creates a dispatcher and wires the hub into the
// orchestrator's event processor.
func NewDispatcher(srv *server.Server, hub *Hub, tokens auth.TokenValidator, log slog.Logger) *Dispatcher {
	d := &Dispatcher{
		srv:             srv,
		hub:             hub,
		tokens:          tokens,
		log:             log,
		maxMessageBytes: srv.Config().MaxInboundMessageBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin checks are the deployment proxy's concern.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	srv.Events().SetBroadcaster(hub)
	return d
}

// HandleUpgrade authenticates the token from the upgrade query string,
// upgrades the connection, and starts its pumps.
func (d *Dispatcher) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	principal, err := d.tokens.Validate(r.URL.Query().Get("token"))
	if err != nil {
		d.log.Warnf("Rejected unauthenticated connection from %s: %v", r.RemoteAddr, err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sock, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.log.Warnf("Upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	c := newConn(uuid.NewString(), principal, d.hub, sock, d.log)
	d.hub.Register(c)
	go c.writePump()
	go c.readPump(d.maxMessageBytes, d.handleMessage)
}

// handleMessage decodes one envelope and routes it.
func (d *Dispatcher) handleMessage(c *Conn, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		d.reply(c, Response{Error: &WireError{Reason: ReasonBadRequest}})
		return
	}
	if env.Method == "" {
		d.replyErr(c, env.ID, ReasonBadRequest)
		return
	}

	// Connection teardown must not abort an in-flight operation, so each
	// invocation runs against a fresh background context.
	ctx := context.Background()

	switch env.Method {
	case MethodCreateGame:
		d.handleCreateGame(ctx, c, env)
	case MethodJoinGame:
		d.handleJoinGame(ctx, c, env)
	case MethodStartGame:
		d.handleStartGame(ctx, c, env)
	case MethodClickSymbol:
		d.handleClickSymbol(ctx, c, env)
	default:
		d.log.Debugf("Connection %s invoked unknown method %q", c.id, env.Method)
		d.replyErr(c, env.ID, ReasonUnknownMethod)
	}
}

func (d *Dispatcher) handleCreateGame(ctx context.Context, c *Conn, env Envelope) {
	var req CreateGameReq
	if err := json.Unmarshal(env.Params, &req); err != nil {
		d.replyErr(c, env.ID, ReasonBadRequest)
		return
	}
	mode, err := game.ParseMode(req.Mode)
	if err != nil {
		d.replyErr(c, env.ID, ReasonBadRequest)
		return
	}

	session, err := d.srv.CreateGame(ctx, mode, req.MaxPlayers, req.MaxRounds)
	if err != nil {
		d.replyErr(c, env.ID, reasonFor(err))
		return
	}
	d.reply(c, Response{ID: env.ID, Result: GameCreatedResp{
		GameID:     session.ID.String(),
		Mode:       session.Mode.String(),
		MaxPlayers: session.MaxPlayers,
		MaxRounds:  session.MaxRounds,
	}})
}

func (d *Dispatcher) handleJoinGame(ctx context.Context, c *Conn, env Envelope) {
	var req JoinGameReq
	if err := json.Unmarshal(env.Params, &req); err != nil {
		d.replyErr(c, env.ID, ReasonBadRequest)
		return
	}
	sessionID, ok := d.parseIDs(c, env.ID, req.GameID, req.PlayerID)
	if !ok {
		return
	}

	if _, err := d.srv.JoinGame(ctx, sessionID, req.PlayerID); err != nil {
		d.replyErr(c, env.ID, reasonFor(err))
		return
	}
	d.hub.AddToGroup(GroupName(sessionID), c)
	d.reply(c, Response{ID: env.ID, Result: struct{}{}})
}

func (d *Dispatcher) handleStartGame(ctx context.Context, c *Conn, env Envelope) {
	var req StartGameReq
	if err := json.Unmarshal(env.Params, &req); err != nil {
		d.replyErr(c, env.ID, ReasonBadRequest)
		return
	}
	sessionID, err := uuid.Parse(req.GameID)
	if err != nil {
		d.replyErr(c, env.ID, ReasonBadRequest)
		return
	}

	// Subscribe before the call so the caller cannot miss the RoundStart
	// broadcast; the return value carries the same round for dedup.
	d.hub.AddToGroup(GroupName(sessionID), c)

	round, err := d.srv.StartGame(ctx, sessionID)
	if err != nil {
		d.replyErr(c, env.ID, reasonFor(err))
		return
	}
	d.reply(c, Response{ID: env.ID, Result: RoundStartEvent{
		GameID:            sessionID.String(),
		RoundNumber:       round.RoundNumber,
		SharedCardIndex:   round.SharedCardIndex,
		PlayerCardIndexes: round.CardsSnapshot(),
		StartedAtUtc:      round.StartedAt,
	}})
}

func (d *Dispatcher) handleClickSymbol(ctx context.Context, c *Conn, env Envelope) {
	var req ClickSymbolReq
	if err := json.Unmarshal(env.Params, &req); err != nil {
		d.replyErr(c, env.ID, ReasonBadRequest)
		return
	}
	sessionID, ok := d.parseIDs(c, env.ID, req.GameID, req.PlayerID)
	if !ok {
		return
	}
	if req.SymbolID < 0 {
		d.replyErr(c, env.ID, ReasonBadRequest)
		return
	}

	outcome, err := d.srv.ClickSymbol(ctx, sessionID, req.PlayerID, req.SymbolID)
	if err != nil {
		d.replyErr(c, env.ID, reasonFor(err))
		return
	}

	res := RoundResultEvent{
		GameID:          sessionID.String(),
		RoundResolved:   outcome.Result.RoundResolved,
		AttemptAccepted: outcome.Result.AttemptAccepted,
		RoundNumber:     outcome.Result.RoundNumber,
		ProcessedAtUtc:  outcome.ProcessedAt,
		GameCompleted:   outcome.GameCompleted,
	}
	if outcome.Result.RoundResolved {
		res.ResolvingPlayerID = outcome.Result.ResolvedBy
		card := outcome.Result.PlayerCardIndex
		res.ResolvingCardIndex = &card
		symbol := outcome.Result.MatchingSymbol
		res.MatchingSymbolID = &symbol
		ms := outcome.Result.Duration.Milliseconds()
		res.ResolutionDurationMs = &ms
		res.Scores = outcome.Scores
	}
	d.reply(c, Response{ID: env.ID, Result: res})
}

// parseIDs validates the game id and checks that the payload player matches
// the connection's principal. Membership checks beyond identity are the
// orchestrator's concern.
func (d *Dispatcher) parseIDs(c *Conn, correlationID, gameID, playerID string) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(gameID)
	if err != nil || playerID == "" {
		d.replyErr(c, correlationID, ReasonBadRequest)
		return uuid.UUID{}, false
	}
	if playerID != c.principal.ID {
		d.log.Warnf("Connection %s (principal %s) tried to act as %s",
			c.id, c.principal.ID, playerID)
		d.replyErr(c, correlationID, ReasonUnauthorized)
		return uuid.UUID{}, false
	}
	return sessionID, true
}

func (d *Dispatcher) reply(c *Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		d.log.Errorf("Failed to marshal response: %v", err)
		return
	}
	if !c.trySend(data) {
		d.hub.Unregister(c)
	}
}

func (d *Dispatcher) replyErr(c *Conn, correlationID, reason string) {
	d.reply(c, Response{ID: correlationID, Error: &WireError{Reason: reason}})
}

// reasonFor maps orchestrator and domain errors to wire reasons.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, game.ErrAlreadyStarted):
		return ReasonAlreadyStarted
	case errors.Is(err, game.ErrAlreadyCompleted):
		return ReasonAlreadyCompleted
	case errors.Is(err, game.ErrCapacity):
		return ReasonCapacity
	case errors.Is(err, game.ErrDuplicate):
		return ReasonDuplicate
	case errors.Is(err, game.ErrNotEnoughPlayers), errors.Is(err, game.ErrEmptyRoster):
		return ReasonNotEnoughPlayers
	case errors.Is(err, game.ErrNotParticipant):
		return ReasonNotParticipant
	case errors.Is(err, game.ErrNoActiveRound):
		return ReasonNoActiveRound
	case errors.Is(err, game.ErrGameOverAlready):
		return ReasonGameOver
	case errors.Is(err, game.ErrInvalidParams), errors.Is(err, game.ErrModeNotSupported):
		return ReasonBadRequest
	case errors.Is(err, server.ErrSessionNotActive):
		return ReasonNotActive
	case errors.Is(err, server.ErrNotCompleted):
		return ReasonNotActive
	case errors.Is(err, server.ErrStore):
		return ReasonStoreError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCanceled
	}
	return ReasonInternal
}
