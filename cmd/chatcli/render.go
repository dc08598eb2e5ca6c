package main

import (
	"fmt"
	"io"
	"strings"

	"tutor-chat/internal/engine/reactions"
	"tutor-chat/internal/engine/store"
	"tutor-chat/internal/models"
)

// renderSnapshot prints the conversation tail. groups maps message ids to
// aggregated reactions.
func renderSnapshot(w io.Writer, snap store.Snapshot, groups func(int) []reactions.Group, highlighted int, tail int) {
	msgs := snap.Messages
	if tail > 0 && len(msgs) > tail {
		msgs = msgs[len(msgs)-tail:]
	}
	fmt.Fprintf(w, "--- %d messages, %d pinned, synced %s ---\n", len(snap.Messages), len(snap.Pinned), snap.LastSync.Format("15:04:05"))
	for _, m := range msgs {
		marker := " "
		if m.ID == highlighted {
			marker = ">"
		}
		if m.IsPinned {
			marker += "*"
		} else {
			marker += " "
		}
		fmt.Fprintf(w, "%s[%d] %s: %s%s\n", marker, m.ID, authorName(m.Author), describe(m), reactionSuffix(groups(m.ID)))
	}
}

func renderPinned(w io.Writer, pinned []models.Message) {
	if len(pinned) == 0 {
		fmt.Fprintln(w, "no pinned messages")
		return
	}
	for _, m := range pinned {
		fmt.Fprintf(w, "* [%d] %s: %s\n", m.ID, authorName(m.Author), describe(m))
	}
}

func authorName(a models.Author) string {
	if name := a.DisplayName(); name != "" {
		return name
	}
	return fmt.Sprintf("user %d", a.ID)
}

func describe(m models.Message) string {
	body, err := m.Body()
	if err != nil {
		return "(unreadable message: " + err.Error() + ")"
	}
	switch b := body.(type) {
	case models.TextBody:
		return b.Text
	case models.VoiceBody:
		return "[voice] " + b.Caption + " " + b.AudioURL
	case models.ImageBody:
		return "[image] " + b.Caption + " " + b.URL
	case models.FileBody:
		return fmt.Sprintf("[file %s, %d bytes] %s %s", b.Name, b.Size, b.Caption, b.URL)
	default:
		return m.Content
	}
}

func reactionSuffix(groups []reactions.Group) string {
	if len(groups) == 0 {
		return ""
	}
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		mark := ""
		if g.Reacted {
			mark = "!"
		}
		parts = append(parts, fmt.Sprintf("%s%d%s", g.Emoji, g.Count, mark))
	}
	return "  (" + strings.Join(parts, " ") + ")"
}
