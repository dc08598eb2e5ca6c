package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutor-chat/internal/models"
)

func msg(id int, content string) models.Message {
	return models.Message{ID: id, Type: models.MessageText, Content: content}
}

func TestReplaceDropsMessagesMissingFromSnapshot(t *testing.T) {
	s := New()
	s.Replace([]models.Message{msg(1, "a"), msg(2, "b"), msg(3, "c")}, time.Now())
	s.Replace([]models.Message{msg(2, "b"), msg(4, "d")}, time.Now())

	got := s.Messages()
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].ID)
	assert.Equal(t, 4, got[1].ID)
	_, ok := s.Get(1)
	assert.False(t, ok)
}

func TestReplaceKeepsEachIDOnce(t *testing.T) {
	s := New()
	s.Replace([]models.Message{msg(1, "a"), msg(1, "a"), msg(2, "b")}, time.Now())
	assert.Equal(t, 2, s.Len())
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	s.Replace([]models.Message{msg(1, "a")}, time.Now())
	got := s.Messages()
	got[0].Content = "mutated"

	m, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a", m.Content)
}

func TestSubscribeAndReset(t *testing.T) {
	s := New()
	var seen []uint64
	unsubscribe := s.Subscribe(func(snap Snapshot) { seen = append(seen, snap.Version) })

	now := time.Now()
	s.Replace([]models.Message{msg(1, "a")}, now)
	s.ReplacePinned([]models.Message{msg(1, "a")})
	assert.Equal(t, now, s.LastSync())
	s.Reset()
	unsubscribe()
	s.Replace(nil, now)

	assert.Equal(t, []uint64{1, 2, 3}, seen)
	assert.Empty(t, s.Pinned())
}

func TestReplaceAllNotifiesOnce(t *testing.T) {
	s := New()
	var seen []Snapshot
	s.Subscribe(func(snap Snapshot) { seen = append(seen, snap) })

	s.ReplaceAll([]models.Message{msg(1, "a"), msg(2, "b")}, []models.Message{msg(2, "b")}, time.Now())

	require.Len(t, seen, 1)
	assert.Len(t, seen[0].Messages, 2)
	require.Len(t, seen[0].Pinned, 1)
	assert.Equal(t, 2, seen[0].Pinned[0].ID)

	s.Replace([]models.Message{msg(2, "b")}, time.Now())
	assert.Len(t, s.Pinned(), 1)
}
