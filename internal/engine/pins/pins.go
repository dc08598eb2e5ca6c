// Package pins pins and unpins group messages.
package pins

import (
	"context"
	"errors"
	"fmt"
	"log"

	"tutor-chat/internal/models"
)

var (
	ErrNotAvailable = errors.New("pinning is not available in this conversation")
	ErrForbidden    = errors.New("only group admins can pin messages")
)

// API is the slice of the transport used by Manager.
type API interface {
	Pin(ctx context.Context, groupID, messageID int) error
	Unpin(ctx context.Context, groupID, messageID int) error
}

// Source exposes the pinned snapshot kept by the store.
type Source interface {
	Pinned() []models.Message
}

// Syncer forces a full resync.
type Syncer interface {
	Sync(ctx context.Context) error
}

// Manager changes the pinned set of one group.
type Manager struct {
	api    API
	conv   models.Conversation
	userID int
	source Source
	syncer Syncer
	logger *log.Logger
}

// NewManager constructs a Manager acting as userID.
func NewManager(api API, conv models.Conversation, userID int, source Source, syncer Syncer, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{api: api, conv: conv, userID: userID, source: source, syncer: syncer, logger: logger}
}

// CanPin reports whether the current user may change pins.
func (m *Manager) CanPin() bool {
	return m.conv.CanPin(m.userID)
}

// Pin pins messageID and refreshes both lists.
func (m *Manager) Pin(ctx context.Context, messageID int) error {
	return m.change(ctx, "pin", messageID, m.api.Pin)
}

// Unpin unpins messageID and refreshes both lists.
func (m *Manager) Unpin(ctx context.Context, messageID int) error {
	return m.change(ctx, "unpin", messageID, m.api.Unpin)
}

// Pinned returns the pinned messages from the last sync.
func (m *Manager) Pinned() []models.Message {
	if !m.conv.IsGroup() || m.source == nil {
		return nil
	}
	return m.source.Pinned()
}

func (m *Manager) change(ctx context.Context, op string, messageID int, call func(context.Context, int, int) error) error {
	if !m.conv.IsGroup() {
		return ErrNotAvailable
	}
	if !m.CanPin() {
		return ErrForbidden
	}
	if err := call(ctx, m.conv.ID, messageID); err != nil {
		return fmt.Errorf("%s message: %w", op, err)
	}
	m.logger.Printf("pins: %s ok group_id=%d message_id=%d", op, m.conv.ID, messageID)

	if m.syncer != nil {
		if err := m.syncer.Sync(ctx); err != nil {
			m.logger.Printf("pins: resync after %s failed group_id=%d err=%v", op, m.conv.ID, err)
		}
	}
	return nil
}
