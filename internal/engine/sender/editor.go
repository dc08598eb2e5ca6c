package sender

import (
	"context"
	"fmt"
	"log"
	"strings"

	"tutor-chat/internal/models"
)

// EditAPI is the slice of the transport used by Editor.
type EditAPI interface {
	UpdateMessage(ctx context.Context, groupID, messageID int, content string) (models.Message, error)
	DeleteMessage(ctx context.Context, groupID, messageID int) error
}

// Lookup reads messages from the local snapshot.
type Lookup interface {
	Get(id int) (models.Message, bool)
}

// Editor edits and deletes group messages.
type Editor struct {
	api    EditAPI
	conv   models.Conversation
	userID int
	lookup Lookup
	syncer Syncer
	logger *log.Logger
}

// NewEditor constructs an Editor acting as userID.
func NewEditor(api EditAPI, conv models.Conversation, userID int, lookup Lookup, syncer Syncer, logger *log.Logger) *Editor {
	if logger == nil {
		logger = log.Default()
	}
	return &Editor{api: api, conv: conv, userID: userID, lookup: lookup, syncer: syncer, logger: logger}
}

// Edit replaces the content of a message.
func (e *Editor) Edit(ctx context.Context, messageID int, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, ErrEmptyMessage
	}
	if err := e.authorize(messageID); err != nil {
		return models.Message{}, err
	}

	msg, err := e.api.UpdateMessage(ctx, e.conv.ID, messageID, content)
	if err != nil {
		return models.Message{}, fmt.Errorf("edit message: %w", err)
	}
	e.logger.Printf("sender: message edited conversation_id=%d message_id=%d", e.conv.ID, messageID)
	e.resync(ctx)
	return msg, nil
}

// Delete removes a message.
func (e *Editor) Delete(ctx context.Context, messageID int) error {
	if err := e.authorize(messageID); err != nil {
		return err
	}
	if err := e.api.DeleteMessage(ctx, e.conv.ID, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	e.logger.Printf("sender: message deleted conversation_id=%d message_id=%d", e.conv.ID, messageID)
	e.resync(ctx)
	return nil
}

func (e *Editor) authorize(messageID int) error {
	if !e.conv.IsGroup() {
		return ErrNotAvailable
	}
	msg, ok := e.lookup.Get(messageID)
	if !ok {
		return ErrNotFound
	}
	if !e.conv.CanModify(e.userID, msg) {
		return ErrForbidden
	}
	return nil
}

func (e *Editor) resync(ctx context.Context) {
	if e.syncer == nil {
		return
	}
	if err := e.syncer.Sync(ctx); err != nil {
		e.logger.Printf("sender: resync after edit failed conversation_id=%d err=%v", e.conv.ID, err)
	}
}
