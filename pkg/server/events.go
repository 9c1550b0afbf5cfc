package server

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"
)

// SessionEventType identifies a lifecycle event of one session.
type SessionEventType string

const (
	SessionEventRoundStart   SessionEventType = "round_start"
	SessionEventRoundResult  SessionEventType = "round_result"
	SessionEventGameOver     SessionEventType = "game_over"
	SessionEventPlayerJoined SessionEventType = "player_joined"
)

// SessionEvent is an immutable snapshot of a lifecycle event, ready for
// fan-out to the session's group.
type SessionEvent struct {
	Type      SessionEventType
	SessionID uuid.UUID
	Payload   EventPayload
	Timestamp time.Time
}

// Broadcaster delivers an event to every connection subscribed to the
// session's group. The websocket hub implements it.
type Broadcaster interface {
	BroadcastToSession(sessionID uuid.UUID, event *SessionEvent)
}

// EventProcessor decouples event fan-out from the orchestrator's session
// locks. Events are enqueued while the lock is held (cheap, non-blocking)
// and delivered by worker goroutines after the operation returns. Each
// worker owns its queue and sessions are pinned to workers by id hash, so
// one session's events are always delivered in publish order while distinct
// sessions spread across the pool.
type EventProcessor struct {
	log         slog.Logger
	broadcaster Broadcaster
	queues      []chan *SessionEvent
	stopChan    chan struct{}
	wg          sync.WaitGroup
	started     bool
	mu          sync.Mutex
}

// NewEventProcessor creates a processor with the given per-worker queue size
// and worker count.
func NewEventProcessor(log slog.Logger, queueSize, workerCount int) *EventProcessor {
	if workerCount < 1 {
		workerCount = 1
	}
	queues := make([]chan *SessionEvent, workerCount)
	for i := range queues {
		queues[i] = make(chan *SessionEvent, queueSize)
	}
	return &EventProcessor{
		log:      log,
		queues:   queues,
		stopChan: make(chan struct{}),
	}
}

// SetBroadcaster wires the delivery target. It may be called before or after
// Start; events delivered while no broadcaster is wired are dropped with a
// warning.
func (ep *EventProcessor) SetBroadcaster(b Broadcaster) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.broadcaster = b
}

// Start launches the workers.
func (ep *EventProcessor) Start() {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.started {
		return
	}
	ep.started = true
	ep.log.Infof("Starting event processor with %d workers", len(ep.queues))

	for i, queue := range ep.queues {
		ep.wg.Add(1)
		go ep.runWorker(i, queue)
	}
}

// Stop drains nothing; queued events at shutdown are dropped. The mutex is
// released before waiting on the workers: a worker mid-delivery takes the
// same mutex to read the broadcaster, so waiting while holding it would
// deadlock.
func (ep *EventProcessor) Stop() {
	ep.mu.Lock()
	if !ep.started {
		ep.mu.Unlock()
		return
	}
	ep.started = false
	close(ep.stopChan)
	ep.mu.Unlock()

	ep.log.Infof("Stopping event processor...")
	ep.wg.Wait()
	ep.log.Infof("Event processor stopped")
}

// PublishEvent enqueues an event for delivery. The call never blocks; when
// the session's queue is full the event is dropped and logged.
func (ep *EventProcessor) PublishEvent(event *SessionEvent) {
	ep.mu.Lock()
	started := ep.started
	ep.mu.Unlock()

	if !started {
		ep.log.Warnf("Event processor not started, dropping event: %s", event.Type)
		return
	}

	queue := ep.queues[workerIndex(event.SessionID, len(ep.queues))]
	select {
	case queue <- event:
		ep.log.Debugf("Published event: %s for session %s", event.Type, event.SessionID)
	default:
		ep.log.Errorf("Event queue full, dropping event: %s for session %s", event.Type, event.SessionID)
	}
}

// workerIndex pins a session to a worker so its events stay FIFO.
func workerIndex(sessionID uuid.UUID, workers int) int {
	h := fnv.New32a()
	h.Write(sessionID[:])
	return int(h.Sum32() % uint32(workers))
}

// runWorker executes a single worker loop.
func (ep *EventProcessor) runWorker(id int, queue chan *SessionEvent) {
	defer ep.wg.Done()
	ep.log.Debugf("Event worker %d started", id)

	for {
		select {
		case <-ep.stopChan:
			ep.log.Debugf("Event worker %d stopping", id)
			return
		case event := <-queue:
			if event != nil {
				ep.deliver(id, event)
			}
		}
	}
}

// deliver hands one event to the broadcaster.
func (ep *EventProcessor) deliver(worker int, event *SessionEvent) {
	ep.mu.Lock()
	b := ep.broadcaster
	ep.mu.Unlock()

	if b == nil {
		ep.log.Warnf("No broadcaster wired, dropping event: %s", event.Type)
		return
	}
	ep.log.Debugf("Worker %d delivering %s for session %s", worker, event.Type, event.SessionID)
	b.BroadcastToSession(event.SessionID, event)
}
