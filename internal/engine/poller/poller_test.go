package poller

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutor-chat/internal/engine/apiclient"
	"tutor-chat/internal/engine/connection"
	"tutor-chat/internal/engine/reactions"
	"tutor-chat/internal/engine/store"
	"tutor-chat/internal/models"
)

type response struct {
	msgs []models.Message
	err  error
}

// scriptedAPI replays responses in order and repeats the last one.
type scriptedAPI struct {
	mu        sync.Mutex
	responses []response
	pinned    []models.Message
	tutor     []models.TutorMessage
	calls     int32
	onCall    func()
}

func (s *scriptedAPI) next() response {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return r
}

func (s *scriptedAPI) GroupMessages(context.Context, int) ([]models.Message, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.onCall != nil {
		s.onCall()
	}
	r := s.next()
	return r.msgs, r.err
}

func (s *scriptedAPI) PinnedMessages(context.Context, int) ([]models.Message, error) {
	return s.pinned, nil
}

func (s *scriptedAPI) TutorMessages(context.Context, int) ([]models.TutorMessage, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.tutor, nil
}

func (s *scriptedAPI) count() int {
	return int(atomic.LoadInt32(&s.calls))
}

var group = models.Conversation{ID: 4, Kind: models.KindGroup}

func fastConfig() Config {
	return Config{Interval: 10 * time.Millisecond, RetryBase: time.Millisecond, MaxAttempts: 3}
}

func text(id int, content string) models.Message {
	return models.Message{ID: id, Type: models.MessageText, Content: content}
}

func TestSyncReplacesStoreWithSnapshot(t *testing.T) {
	api := &scriptedAPI{
		responses: []response{
			{msgs: []models.Message{text(1, "a"), text(2, "b")}},
			{msgs: []models.Message{text(2, "b"), text(3, "c")}},
		},
		pinned: []models.Message{text(2, "b")},
	}
	st := store.New()
	status := connection.NewMachine()
	p := New(api, group, st, reactions.NewIndex(1), status, fastConfig(), Hooks{})

	require.NoError(t, p.Sync(context.Background()))
	require.NoError(t, p.Sync(context.Background()))

	ids := []int{}
	for _, m := range st.Messages() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []int{2, 3}, ids)
	assert.Len(t, st.Pinned(), 1)
	assert.Equal(t, connection.Connected, status.Status())
	assert.False(t, st.LastSync().IsZero())
}

func TestSyncRebuildsReactionIndex(t *testing.T) {
	msg := text(1, "a")
	msg.Reactions = []models.Reaction{{ID: 1, Emoji: "👍", UserID: 2}}
	api := &scriptedAPI{responses: []response{{msgs: []models.Message{msg}}}}
	index := reactions.NewIndex(2)
	p := New(api, group, store.New(), index, connection.NewMachine(), fastConfig(), Hooks{})

	require.NoError(t, p.Sync(context.Background()))
	groups := index.Groups(1)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].Reacted)
}

func TestSubscribersSeeCurrentReactionsAndPins(t *testing.T) {
	msg := text(1, "a")
	msg.Reactions = []models.Reaction{{ID: 1, Emoji: "👍", UserID: 2}}
	api := &scriptedAPI{
		responses: []response{{msgs: []models.Message{msg}}},
		pinned:    []models.Message{msg},
	}
	st := store.New()
	index := reactions.NewIndex(2)
	p := New(api, group, st, index, connection.NewMachine(), fastConfig(), Hooks{})

	var counts, pinned []int
	st.Subscribe(func(snap store.Snapshot) {
		groups := index.Groups(1)
		if len(groups) == 0 {
			counts = append(counts, 0)
		} else {
			counts = append(counts, groups[0].Count)
		}
		pinned = append(pinned, len(snap.Pinned))
	})

	require.NoError(t, p.Sync(context.Background()))
	assert.Equal(t, []int{1}, counts)
	assert.Equal(t, []int{1}, pinned)
}

func TestNotFoundClosesConversationOnce(t *testing.T) {
	api := &scriptedAPI{responses: []response{{err: &apiclient.StatusError{Status: http.StatusNotFound}}}}
	var closed, refreshed int
	p := New(api, group, store.New(), nil, connection.NewMachine(), fastConfig(), Hooks{
		ConversationClosed: func(conv models.Conversation, err error) {
			closed++
			assert.Equal(t, group.ID, conv.ID)
		},
		RefreshList: func() { refreshed++ },
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	assert.True(t, p.Stopped())
	assert.Equal(t, 1, closed)
	assert.Equal(t, 1, refreshed)
	assert.Equal(t, 1, api.count())

	assert.ErrorIs(t, p.Sync(context.Background()), ErrStopped)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, api.count())
}

func TestForbiddenClosesConversation(t *testing.T) {
	api := &scriptedAPI{responses: []response{{err: &apiclient.StatusError{Status: http.StatusForbidden}}}}
	closed := 0
	p := New(api, group, store.New(), nil, connection.NewMachine(), fastConfig(), Hooks{
		ConversationClosed: func(models.Conversation, error) { closed++ },
	})
	err := p.Sync(context.Background())
	assert.True(t, apiclient.IsGone(err))
	assert.Equal(t, 1, closed)
	assert.True(t, p.Stopped())
}

func TestUnauthorizedSignalsSessionExpired(t *testing.T) {
	api := &scriptedAPI{responses: []response{{err: &apiclient.StatusError{Status: http.StatusUnauthorized}}}}
	expired := 0
	p := New(api, group, store.New(), nil, connection.NewMachine(), fastConfig(), Hooks{
		SessionExpired: func() { expired++ },
	})
	_ = p.Sync(context.Background())
	_ = p.Sync(context.Background())
	assert.Equal(t, 1, expired)
	assert.Equal(t, 1, api.count())
}

func TestDisconnectedOnlyAfterThirdFailure(t *testing.T) {
	serverErr := &apiclient.StatusError{Status: http.StatusInternalServerError}
	api := &scriptedAPI{responses: []response{
		{msgs: []models.Message{text(1, "a")}},
		{err: serverErr},
		{err: serverErr},
		{err: serverErr},
	}}
	status := connection.NewMachine()
	var seenAtCall []connection.Status
	api.onCall = func() { seenAtCall = append(seenAtCall, status.Status()) }

	errorsRaised := 0
	st := store.New()
	p := New(api, group, st, nil, status, fastConfig(), Hooks{Error: func(error) { errorsRaised++ }})

	require.NoError(t, p.Sync(context.Background()))
	err := p.Sync(context.Background())
	require.Error(t, err)

	assert.Equal(t, 4, api.count())
	assert.Equal(t, []connection.Status{connection.Reconnecting, connection.Connected, connection.Reconnecting, connection.Reconnecting}, seenAtCall)
	assert.Equal(t, connection.Disconnected, status.Status())
	assert.Equal(t, 1, errorsRaised)
	assert.Equal(t, 1, st.Len())
}

func TestRecoversWithinAttempts(t *testing.T) {
	api := &scriptedAPI{responses: []response{
		{err: errors.New("connection reset")},
		{msgs: []models.Message{text(1, "a")}},
	}}
	status := connection.NewMachine()
	p := New(api, group, store.New(), nil, status, fastConfig(), Hooks{Error: func(error) { t.Fatal("no error expected") }})

	require.NoError(t, p.Sync(context.Background()))
	assert.Equal(t, connection.Connected, status.Status())
	assert.Equal(t, 2, api.count())
}

func TestReconnectRearmsPolling(t *testing.T) {
	serverErr := &apiclient.StatusError{Status: http.StatusBadGateway}
	api := &scriptedAPI{responses: []response{
		{err: serverErr}, {err: serverErr}, {err: serverErr},
		{msgs: []models.Message{text(1, "a")}},
	}}
	status := connection.NewMachine()
	p := New(api, group, store.New(), nil, status, fastConfig(), Hooks{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	require.Eventually(t, func() bool { return status.Status() == connection.Disconnected }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 3, api.count(), "ticks are ignored while disconnected")

	p.Reconnect()
	require.Eventually(t, func() bool { return status.Status() == connection.Connected }, time.Second, 5*time.Millisecond)
	p.Stop()
}

func TestTutorMessagesAreRemapped(t *testing.T) {
	api := &scriptedAPI{tutor: []models.TutorMessage{
		{ID: 1, SenderID: 0, ReceiverID: 3, Content: "Your session starts soon"},
		{ID: 2, SenderID: 3, ReceiverID: 8, Content: "hi", Sender: &models.Author{FirstName: "Kim"}},
	}}
	st := store.New()
	conv := models.TutorConversation(models.TutorChat{ID: 6, StudentID: 3, TutorID: 8})
	p := New(api, conv, st, nil, connection.NewMachine(), fastConfig(), Hooks{})

	require.NoError(t, p.Sync(context.Background()))
	msgs := st.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.PlatformAuthor, msgs[0].Author)
	assert.Equal(t, "Kim", msgs[1].Author.FirstName)
	assert.Equal(t, 3, msgs[1].AuthorID)
}

func TestStopEndsRunLoop(t *testing.T) {
	api := &scriptedAPI{responses: []response{{msgs: nil}}}
	p := New(api, group, store.New(), nil, connection.NewMachine(), fastConfig(), Hooks{})

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	require.Eventually(t, func() bool { return api.count() >= 2 }, time.Second, 5*time.Millisecond)

	p.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run loop did not exit")
	}
	after := api.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, api.count())
}
