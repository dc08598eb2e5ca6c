// Package store holds the local, in-memory copy of a conversation's messages.
// The sync poller is its only writer; every write replaces the contents
// wholesale with the server's snapshot.
package store

import (
	"sync"
	"time"

	"tutor-chat/internal/models"
)

// Snapshot is an immutable view of the store.
type Snapshot struct {
	Messages []models.Message
	Pinned   []models.Message
	LastSync time.Time
	Version  uint64
}

// Store is the local message set of one conversation.
type Store struct {
	mu        sync.RWMutex
	messages  []models.Message
	index     map[int]int
	pinned    []models.Message
	lastSync  time.Time
	version   uint64
	nextSubID int
	listeners map[int]func(Snapshot)
}

// New returns an empty store.
func New() *Store {
	return &Store{
		index:     map[int]int{},
		listeners: map[int]func(Snapshot){},
	}
}

// Replace swaps the message list for msgs and keeps the pinned list.
// Duplicate ids keep their first occurrence so a message is held at most once.
func (s *Store) Replace(msgs []models.Message, at time.Time) {
	s.replace(msgs, nil, false, at)
}

// ReplaceAll swaps both lists and notifies subscribers once.
func (s *Store) ReplaceAll(msgs, pinned []models.Message, at time.Time) {
	s.replace(msgs, pinned, true, at)
}

func (s *Store) replace(msgs, pinned []models.Message, withPinned bool, at time.Time) {
	next := make([]models.Message, 0, len(msgs))
	index := make(map[int]int, len(msgs))
	for _, m := range msgs {
		if _, dup := index[m.ID]; dup {
			continue
		}
		index[m.ID] = len(next)
		next = append(next, m)
	}

	s.mu.Lock()
	s.messages = next
	s.index = index
	if withPinned {
		s.pinned = cloneMessages(pinned)
	}
	s.lastSync = at
	s.version++
	snap := s.snapshotLocked()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, snap)
}

// ReplacePinned swaps the pinned list for pinned.
func (s *Store) ReplacePinned(pinned []models.Message) {
	next := make([]models.Message, len(pinned))
	copy(next, pinned)

	s.mu.Lock()
	s.pinned = next
	s.version++
	snap := s.snapshotLocked()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, snap)
}

// Reset empties the store, used when the conversation is closed.
func (s *Store) Reset() {
	s.mu.Lock()
	s.messages = nil
	s.pinned = nil
	s.index = map[int]int{}
	s.lastSync = time.Time{}
	s.version++
	snap := s.snapshotLocked()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, snap)
}

// Messages returns a copy of the current message list.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.messages)
}

// Pinned returns a copy of the current pinned list.
func (s *Store) Pinned() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.pinned)
}

// Get looks up a message by id.
func (s *Store) Get(id int) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return models.Message{}, false
	}
	return s.messages[i], true
}

// Len returns the number of messages held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// LastSync is the time of the last successful replace.
func (s *Store) LastSync() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}

// Snapshot returns the full current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every change. The returned func unregisters it.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Messages: cloneMessages(s.messages),
		Pinned:   cloneMessages(s.pinned),
		LastSync: s.lastSync,
		Version:  s.version,
	}
}

func (s *Store) listenersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []func(Snapshot), snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}

func cloneMessages(in []models.Message) []models.Message {
	if in == nil {
		return nil
	}
	out := make([]models.Message, len(in))
	copy(out, in)
	return out
}
