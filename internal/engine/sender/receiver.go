package sender

import (
	"context"
	"fmt"
	"sync"

	"tutor-chat/internal/models"
)

// Directory lists the tutor chats visible to the current user.
type Directory interface {
	ListTutorChats(ctx context.Context) ([]models.TutorChat, error)
}

// ReceiverResolver finds the other party of a tutor chat.
type ReceiverResolver struct {
	conv   models.Conversation
	userID int
	dir    Directory

	mu       sync.Mutex
	looked   bool
	resolved int
}

// NewReceiverResolver constructs a resolver for conv as seen by userID.
func NewReceiverResolver(conv models.Conversation, userID int, dir Directory) *ReceiverResolver {
	return &ReceiverResolver{conv: conv, userID: userID, dir: dir}
}

// Resolve returns the receiver id. The directory is consulted at most once.
func (r *ReceiverResolver) Resolve(ctx context.Context) (int, error) {
	if id := r.local(); id != 0 {
		return id, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved != 0 {
		return r.resolved, nil
	}
	if r.looked || r.dir == nil {
		return 0, ErrNoReceiver
	}
	r.looked = true

	chats, err := r.dir.ListTutorChats(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: lookup failed: %v", ErrNoReceiver, err)
	}
	for _, c := range chats {
		if c.ID != r.conv.ID {
			continue
		}
		if id := counterpart(r.userID, c.StudentID, c.TutorID); id != 0 {
			r.resolved = id
			return id, nil
		}
	}
	return 0, ErrNoReceiver
}

func (r *ReceiverResolver) local() int {
	if id := counterpart(r.userID, r.conv.StudentID, r.conv.TutorID); id != 0 {
		return id
	}
	if r.conv.CreatorID != 0 && r.conv.CreatorID != r.userID {
		return r.conv.CreatorID
	}
	for _, m := range r.conv.Members {
		if m.UserID != 0 && m.UserID != r.userID {
			return m.UserID
		}
	}
	return 0
}

func counterpart(userID, studentID, tutorID int) int {
	if studentID == 0 || tutorID == 0 {
		return 0
	}
	switch userID {
	case studentID:
		return tutorID
	case tutorID:
		return studentID
	}
	return 0
}
