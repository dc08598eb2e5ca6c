// Package reactions derives per-emoji reaction counts from the local store
// and toggles the current user's reactions on the server.
package reactions

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"tutor-chat/internal/models"
)

// ErrNotAvailable is returned for conversations without reaction support.
var ErrNotAvailable = errors.New("reactions are not available in this conversation")

// Group is the aggregated view of one emoji on one message.
type Group struct {
	Emoji   string          `json:"emoji"`
	Count   int             `json:"count"`
	Users   []models.Author `json:"users"`
	Reacted bool            `json:"reacted"`
}

// Aggregate groups raw reactions by emoji in first-seen order.
func Aggregate(reactions []models.Reaction, currentUserID int) []Group {
	if len(reactions) == 0 {
		return nil
	}
	order := make([]string, 0)
	byEmoji := map[string]*Group{}
	for _, r := range reactions {
		g, ok := byEmoji[r.Emoji]
		if !ok {
			g = &Group{Emoji: r.Emoji}
			byEmoji[r.Emoji] = g
			order = append(order, r.Emoji)
		}
		g.Count++
		user := r.User
		if user.ID == 0 {
			user.ID = r.UserID
		}
		g.Users = append(g.Users, user)
		if r.UserID == currentUserID {
			g.Reacted = true
		}
	}
	out := make([]Group, 0, len(order))
	for _, emoji := range order {
		out = append(out, *byEmoji[emoji])
	}
	return out
}

// Index holds the raw reactions of every message in the store.
type Index struct {
	mu            sync.RWMutex
	currentUserID int
	raw           map[int][]models.Reaction
}

// NewIndex returns an empty index for currentUserID.
func NewIndex(currentUserID int) *Index {
	return &Index{currentUserID: currentUserID, raw: map[int][]models.Reaction{}}
}

// Rebuild replaces the index from a fetched message list.
func (i *Index) Rebuild(msgs []models.Message) {
	raw := make(map[int][]models.Reaction, len(msgs))
	for _, m := range msgs {
		if len(m.Reactions) == 0 {
			continue
		}
		list := make([]models.Reaction, len(m.Reactions))
		copy(list, m.Reactions)
		raw[m.ID] = list
	}
	i.mu.Lock()
	i.raw = raw
	i.mu.Unlock()
}

// Apply patches the index with the outcome of a toggle.
func (i *Index) Apply(messageID int, res models.ToggleResult) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	emoji := res.Reaction.Emoji
	list := i.raw[messageID]
	switch res.Action {
	case models.ReactionAdded:
		r := res.Reaction
		if r.UserID == 0 {
			r.UserID = i.currentUserID
		}
		r.MessageID = messageID
		for _, existing := range list {
			if existing.UserID == r.UserID && existing.Emoji == emoji {
				return nil
			}
		}
		i.raw[messageID] = append(list, r)
	case models.ReactionRemoved:
		kept := list[:0:0]
		for _, existing := range list {
			if existing.UserID == i.currentUserID && existing.Emoji == emoji {
				continue
			}
			kept = append(kept, existing)
		}
		if len(kept) == 0 {
			delete(i.raw, messageID)
		} else {
			i.raw[messageID] = kept
		}
	default:
		return fmt.Errorf("unknown reaction action %q", res.Action)
	}
	return nil
}

// Groups returns the aggregated reactions of one message.
func (i *Index) Groups(messageID int) []Group {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return Aggregate(i.raw[messageID], i.currentUserID)
}

// All returns aggregated reactions for every message that has any.
func (i *Index) All() map[int][]Group {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make(map[int][]Group, len(i.raw))
	for id, list := range i.raw {
		out[id] = Aggregate(list, i.currentUserID)
	}
	return out
}

// API is the slice of the transport used by Toggler.
type API interface {
	ToggleReaction(ctx context.Context, groupID, messageID int, emoji string) (models.ToggleResult, error)
}

// Syncer forces a full resync.
type Syncer interface {
	Sync(ctx context.Context) error
}

// Toggler adds or removes the current user's emoji on a message.
type Toggler struct {
	api    API
	conv   models.Conversation
	index  *Index
	syncer Syncer
	logger *log.Logger
}

// NewToggler constructs a Toggler.
func NewToggler(api API, conv models.Conversation, index *Index, syncer Syncer, logger *log.Logger) *Toggler {
	if logger == nil {
		logger = log.Default()
	}
	return &Toggler{api: api, conv: conv, index: index, syncer: syncer, logger: logger}
}

// Toggle sends the toggle, applies the reported action locally and resyncs.
func (t *Toggler) Toggle(ctx context.Context, messageID int, emoji string) (models.ToggleResult, error) {
	if !t.conv.IsGroup() {
		return models.ToggleResult{}, ErrNotAvailable
	}
	if emoji == "" {
		return models.ToggleResult{}, errors.New("emoji is required")
	}

	res, err := t.api.ToggleReaction(ctx, t.conv.ID, messageID, emoji)
	if err != nil {
		return models.ToggleResult{}, fmt.Errorf("toggle reaction: %w", err)
	}
	if res.Reaction.Emoji == "" {
		res.Reaction.Emoji = emoji
	}
	if err := t.index.Apply(messageID, res); err != nil {
		return res, err
	}

	if t.syncer != nil {
		if err := t.syncer.Sync(ctx); err != nil {
			t.logger.Printf("reactions: resync after toggle failed message_id=%d err=%v", messageID, err)
		}
	}
	return res, nil
}
