package pins

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutor-chat/internal/engine/apiclient"
	"tutor-chat/internal/engine/connection"
	"tutor-chat/internal/engine/poller"
	"tutor-chat/internal/engine/reactions"
	"tutor-chat/internal/engine/store"
	"tutor-chat/internal/models"
)

type fakeServer struct {
	messages []models.Message
	pinCalls int
	err      error
}

func (f *fakeServer) setPinned(id int, pinned bool) {
	for i := range f.messages {
		if f.messages[i].ID == id {
			f.messages[i].IsPinned = pinned
		}
	}
}

func (f *fakeServer) Pin(_ context.Context, _, messageID int) error {
	f.pinCalls++
	if f.err != nil {
		return f.err
	}
	f.setPinned(messageID, true)
	return nil
}

func (f *fakeServer) Unpin(_ context.Context, _, messageID int) error {
	f.pinCalls++
	if f.err != nil {
		return f.err
	}
	f.setPinned(messageID, false)
	return nil
}

func (f *fakeServer) GroupMessages(context.Context, int) ([]models.Message, error) {
	return append([]models.Message(nil), f.messages...), nil
}

func (f *fakeServer) PinnedMessages(context.Context, int) ([]models.Message, error) {
	var out []models.Message
	for _, m := range f.messages {
		if m.IsPinned {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeServer) TutorMessages(context.Context, int) ([]models.TutorMessage, error) {
	return nil, nil
}

func newManager(server *fakeServer, conv models.Conversation, userID int) (*Manager, *store.Store) {
	st := store.New()
	p := poller.New(server, conv, st, reactions.NewIndex(userID), connection.NewMachine(), poller.Config{RetryBase: time.Millisecond}, poller.Hooks{})
	return NewManager(server, conv, userID, st, p, nil), st
}

func TestAdminPinRefreshesBothLists(t *testing.T) {
	server := &fakeServer{messages: []models.Message{{ID: 1, Content: "a"}, {ID: 2, Content: "b"}}}
	conv := models.Conversation{ID: 4, Kind: models.KindGroup, Members: []models.Member{{UserID: 3, Role: models.RoleAdmin}}}
	m, st := newManager(server, conv, 3)

	require.NoError(t, m.Pin(context.Background(), 2))
	pinned := m.Pinned()
	require.Len(t, pinned, 1)
	assert.Equal(t, 2, pinned[0].ID)
	msg, ok := st.Get(2)
	require.True(t, ok)
	assert.True(t, msg.IsPinned)

	require.NoError(t, m.Unpin(context.Background(), 2))
	assert.Empty(t, m.Pinned())
}

func TestOwnerByCreatorCanPin(t *testing.T) {
	server := &fakeServer{messages: []models.Message{{ID: 1}}}
	m, _ := newManager(server, models.Conversation{ID: 4, Kind: models.KindGroup, CreatorID: 8}, 8)
	require.NoError(t, m.Pin(context.Background(), 1))
}

func TestMemberCannotPin(t *testing.T) {
	server := &fakeServer{messages: []models.Message{{ID: 1}}}
	conv := models.Conversation{ID: 4, Kind: models.KindGroup, Members: []models.Member{{UserID: 3, Role: models.RoleMember}}}
	m, _ := newManager(server, conv, 3)

	assert.ErrorIs(t, m.Pin(context.Background(), 1), ErrForbidden)
	assert.Zero(t, server.pinCalls)
}

func TestNonMemberIsNotElevated(t *testing.T) {
	m, _ := newManager(&fakeServer{}, models.Conversation{ID: 4, Kind: models.KindGroup}, 1)
	assert.False(t, m.CanPin())
}

func TestPinUnavailableInTutorChat(t *testing.T) {
	server := &fakeServer{}
	m, _ := newManager(server, models.Conversation{ID: 4, Kind: models.KindTutor, StudentID: 1, TutorID: 2}, 1)

	assert.ErrorIs(t, m.Pin(context.Background(), 1), ErrNotAvailable)
	assert.Nil(t, m.Pinned())
	assert.Zero(t, server.pinCalls)
}

func TestServerRejectionIsReturned(t *testing.T) {
	server := &fakeServer{err: &apiclient.StatusError{Status: http.StatusForbidden, Message: "admins only"}}
	conv := models.Conversation{ID: 4, Kind: models.KindGroup, Members: []models.Member{{UserID: 3, Role: models.RoleOwner}}}
	m, _ := newManager(server, conv, 3)

	err := m.Pin(context.Background(), 1)
	status, ok := apiclient.StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, status)
}
