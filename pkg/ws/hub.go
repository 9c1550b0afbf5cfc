package ws

import (
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"spotrace-backend/pkg/server"
)

// GroupName derives the broadcast group for a session id.
func GroupName(sessionID uuid.UUID) string {
	return "game:" + hex.EncodeToString(sessionID[:])
}

// Hub tracks live connections and their group subscriptions, and fans
// session events out to groups. It implements server.Broadcaster.
type Hub struct {
	log slog.Logger

	mu     sync.RWMutex
	conns  map[*Conn]struct{}
	groups map[string]map[*Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub(log slog.Logger) *Hub {
	return &Hub{
		log:    log,
		conns:  make(map[*Conn]struct{}),
		groups: make(map[string]map[*Conn]struct{}),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debugf("Connection %s registered (principal %s)", c.id, c.principal.ID)
}

// Unregister drops a connection from the hub and every group and closes its
// outbound queue. Safe to call more than once.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	_, known := h.conns[c]
	if known {
		delete(h.conns, c)
		for name, members := range h.groups {
			delete(members, c)
			if len(members) == 0 {
				delete(h.groups, name)
			}
		}
	}
	h.mu.Unlock()

	if known {
		c.closeSend()
		h.log.Debugf("Connection %s unregistered", c.id)
	}
}

// AddToGroup subscribes a connection to a group. Adding twice is a no-op.
func (h *Hub) AddToGroup(group string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Conn]struct{})
		h.groups[group] = members
	}
	members[c] = struct{}{}
}

// GroupSize returns the number of subscribers of a group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// SendToGroup marshals the value once and queues it on every subscriber.
// Connections with a full outbound queue are dropped from the hub; a slow
// client must not stall the group.
func (h *Hub) SendToGroup(group string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Errorf("Failed to marshal group message: %v", err)
		return
	}

	h.mu.RLock()
	members := make([]*Conn, 0, len(h.groups[group]))
	for c := range h.groups[group] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if !c.trySend(data) {
			h.log.Warnf("Connection %s send queue full, dropping connection", c.id)
			h.Unregister(c)
		}
	}
}

// BroadcastToSession implements server.Broadcaster by translating the event
// to its wire frame and sending it to the session's group.
func (h *Hub) BroadcastToSession(sessionID uuid.UUID, ev *server.SessionEvent) {
	frame := eventFrame(sessionID, ev)
	if frame == nil {
		h.log.Warnf("No wire frame for event %s, dropping", ev.Type)
		return
	}
	h.SendToGroup(GroupName(sessionID), frame)
}
