package statemachine

import (
	"sync"
)

// StateFn is a state expressed as a function over the owning entity. Each
// invocation performs the state's work and returns the next state, or nil
// when the machine has reached a terminal state.
type StateFn[T any] func(*T) StateFn[T]

// Machine drives an entity through StateFn transitions. It is safe for
// concurrent use, though callers that already serialize access (for example
// under a per-session lock) pay only the uncontended lock cost.
type Machine[T any] struct {
	entity  *T
	stateFn StateFn[T]
	mu      sync.RWMutex
}

// New creates a machine for the entity starting in the given state.
func New[T any](entity *T, initial StateFn[T]) *Machine[T] {
	return &Machine[T]{entity: entity, stateFn: initial}
}

// Dispatch sets the given state as current, executes it once, and stores the
// state it returns. A nil argument leaves the machine unchanged.
func (m *Machine[T]) Dispatch(stateFn StateFn[T]) {
	m.mu.Lock()
	m.stateFn = stateFn
	m.mu.Unlock()

	if stateFn == nil {
		return
	}
	next := stateFn(m.entity)

	m.mu.Lock()
	m.stateFn = next
	m.mu.Unlock()
}

// Step executes the current state once and advances to the state it returns.
// It reports false when the machine is already terminal.
func (m *Machine[T]) Step() bool {
	m.mu.RLock()
	current := m.stateFn
	m.mu.RUnlock()

	if current == nil {
		return false
	}
	next := current(m.entity)

	m.mu.Lock()
	m.stateFn = next
	m.mu.Unlock()
	return true
}

// Current returns the current state function.
func (m *Machine[T]) Current() StateFn[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateFn
}

// SetState replaces the current state without executing anything.
func (m *Machine[T]) SetState(stateFn StateFn[T]) {
	m.mu.Lock()
	m.stateFn = stateFn
	m.mu.Unlock()
}

// Terminal reports whether the machine has no further states to run.
func (m *Machine[T]) Terminal() bool {
	return m.Current() == nil
}
