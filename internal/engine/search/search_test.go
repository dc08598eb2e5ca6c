package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutor-chat/internal/models"
)

func fixture() []models.Message {
	name := "Homework-Week3.PDF"
	return []models.Message{
		{ID: 1, Content: "Hello class", Author: models.Author{FirstName: "Maria", LastName: "Lopez"}},
		{ID: 2, Content: "see attached", FileName: &name, Author: models.Author{FirstName: "Tom"}},
		{ID: 3, Content: "thanks!", Author: models.Author{FirstName: "Sam", LastName: "Hellman"}},
		{ID: 4, Content: "ok", Author: models.Author{FirstName: "Lee"}},
	}
}

func TestSearchMatchesContentAuthorAndFileName(t *testing.T) {
	n := NewNavigator(time.Minute, nil)
	defer n.Close()

	assert.Equal(t, []int{1, 3}, n.Search("HELL", fixture()))
	assert.Equal(t, []int{2}, n.Search("week3", fixture()))
	assert.Equal(t, []int{1}, n.Search("lopez", fixture()))
}

func TestEmptyQueryYieldsNoResults(t *testing.T) {
	n := NewNavigator(time.Minute, nil)
	defer n.Close()

	assert.Empty(t, n.Search("   ", fixture()))
	_, ok := n.Next()
	assert.False(t, ok)
	assert.Equal(t, -1, n.Cursor().Index)
}

func TestNavigationWraps(t *testing.T) {
	var focused []int
	n := NewNavigator(time.Minute, func(id int) { focused = append(focused, id) })
	defer n.Close()

	results := n.Search("l", fixture())
	require.Equal(t, []int{1, 3, 4}, results)
	assert.Equal(t, 0, n.Cursor().Index)

	id, ok := n.Previous()
	require.True(t, ok)
	assert.Equal(t, 4, id)
	assert.Equal(t, 2, n.Cursor().Index)

	id, _ = n.Next()
	assert.Equal(t, 1, id)
	assert.Equal(t, 0, n.Cursor().Index)

	assert.Equal(t, []int{1, 4, 1}, focused)
}

func TestHighlightExpires(t *testing.T) {
	n := NewNavigator(20*time.Millisecond, nil)
	defer n.Close()

	n.Search("thanks", fixture())
	assert.Equal(t, 3, n.Cursor().Highlighted)
	assert.Eventually(t, func() bool { return n.Cursor().Highlighted == 0 }, time.Second, 5*time.Millisecond)
}
