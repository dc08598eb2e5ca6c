// Package connection tracks whether the sync loop is reaching the server.
package connection

import "sync"

// Status is the connection state of one open conversation.
type Status string

const (
	Connected    Status = "connected"
	Reconnecting Status = "reconnecting"
	Disconnected Status = "disconnected"
)

// Machine holds the current status and notifies observers on change.
type Machine struct {
	mu        sync.RWMutex
	status    Status
	observers []func(Status)
}

// NewMachine starts in the reconnecting state until the first sync lands.
func NewMachine() *Machine {
	return &Machine{status: Reconnecting}
}

// Status returns the current state.
func (m *Machine) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Observe registers fn for every transition.
func (m *Machine) Observe(fn func(Status)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Succeeded records a successful poll.
func (m *Machine) Succeeded() { m.set(Connected) }

// Retrying records a transient failure with attempts remaining.
func (m *Machine) Retrying() { m.set(Reconnecting) }

// Exhausted records that every attempt of a cycle failed.
func (m *Machine) Exhausted() { m.set(Disconnected) }

// Reconnect records a manual reconnect attempt.
func (m *Machine) Reconnect() { m.set(Reconnecting) }

func (m *Machine) set(next Status) {
	m.mu.Lock()
	if m.status == next {
		m.mu.Unlock()
		return
	}
	m.status = next
	observers := make([]func(Status), len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(next)
	}
}
