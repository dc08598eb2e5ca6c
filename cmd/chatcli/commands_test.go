package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutor-chat/internal/engine/reactions"
	"tutor-chat/internal/engine/store"
	"tutor-chat/internal/models"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{"hello there", command{Name: "send", Arg: "hello there"}},
		{"/search  exam date ", command{Name: "search", Arg: "exam date"}},
		{"/next", command{Name: "next"}},
		{"/react 12 👍", command{Name: "react", ID: 12, Arg: "👍"}},
		{"/edit 4 fixed typo", command{Name: "edit", ID: 4, Arg: "fixed typo"}},
		{"/pin 9", command{Name: "pin", ID: 9}},
		{"/delete 9", command{Name: "delete", ID: 9}},
		{"/reconnect", command{Name: "reconnect"}},
	}
	for _, tt := range tests {
		got, err := parseCommand(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, line := range []string{"", "/pin x", "/react 3", "/edit abc text", "/search", "/bogus"} {
		_, err := parseCommand(line)
		assert.ErrorIs(t, err, errUsage, line)
	}
}

func TestParseFileCommand(t *testing.T) {
	cmd, err := parseCommand("/file ./notes.pdf chapter two")
	require.NoError(t, err)
	path, caption := cmd.fileArgs()
	assert.Equal(t, "./notes.pdf", path)
	assert.Equal(t, "chapter two", caption)
}

func TestRenderSnapshot(t *testing.T) {
	audio := "/uploads/a.webm"
	snap := store.Snapshot{
		Messages: []models.Message{
			{ID: 1, Type: models.MessageText, Content: "hi", Author: models.Author{ID: 2, FirstName: "Ann"}},
			{ID: 2, Type: models.MessageVoice, Content: "Voice message (3s)", AudioURL: &audio, IsPinned: true, Author: models.Author{ID: 3}},
		},
		LastSync: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	groups := func(id int) []reactions.Group {
		if id == 1 {
			return []reactions.Group{{Emoji: "👍", Count: 2, Reacted: true}}
		}
		return nil
	}

	var buf bytes.Buffer
	renderSnapshot(&buf, snap, groups, 1, 0)

	out := buf.String()
	assert.Contains(t, out, "> [1] Ann: hi  (👍2!)")
	assert.Contains(t, out, " *[2] user 3: [voice] Voice message (3s) /uploads/a.webm")
}

func TestReadLinesStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	lines := readLines(ctx, strings.NewReader("one\ntwo\nthree\n"))

	assert.Equal(t, "one", <-lines)
	cancel()
	time.Sleep(20 * time.Millisecond)

	_, ok := <-lines
	assert.False(t, ok)
}
