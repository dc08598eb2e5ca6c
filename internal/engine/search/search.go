// Package search filters the local message set and walks the matches.
package search

import (
	"strings"
	"sync"
	"time"

	"tutor-chat/internal/models"
)

// DefaultHighlight is how long a navigated-to message stays highlighted.
const DefaultHighlight = 2 * time.Second

// Cursor is the read-only state of a search.
type Cursor struct {
	Query       string
	Results     []int
	Index       int
	Highlighted int
}

// Current returns the focused message id.
func (c Cursor) Current() (int, bool) {
	if c.Index < 0 || c.Index >= len(c.Results) {
		return 0, false
	}
	return c.Results[c.Index], true
}

// Navigator holds search results and a cyclic cursor over them.
type Navigator struct {
	mu          sync.Mutex
	query       string
	results     []int
	index       int
	highlighted int
	highlight   time.Duration
	timer       *time.Timer
	onFocus     func(messageID int)
}

// NewNavigator builds a Navigator. onFocus, if set, is called with the id
// the view should scroll to.
func NewNavigator(highlight time.Duration, onFocus func(messageID int)) *Navigator {
	if highlight <= 0 {
		highlight = DefaultHighlight
	}
	return &Navigator{index: -1, highlight: highlight, onFocus: onFocus}
}

// Matches reports whether msg matches an already lower-cased query.
func Matches(msg models.Message, lowered string) bool {
	if strings.Contains(strings.ToLower(msg.Content), lowered) {
		return true
	}
	if strings.Contains(strings.ToLower(msg.Author.FirstName), lowered) ||
		strings.Contains(strings.ToLower(msg.Author.LastName), lowered) {
		return true
	}
	return msg.FileName != nil && strings.Contains(strings.ToLower(*msg.FileName), lowered)
}

// Search replaces the results with the messages matching query and focuses
// the first one. An empty query clears the results.
func (n *Navigator) Search(query string, msgs []models.Message) []int {
	lowered := strings.ToLower(strings.TrimSpace(query))
	var results []int
	if lowered != "" {
		for _, m := range msgs {
			if Matches(m, lowered) {
				results = append(results, m.ID)
			}
		}
	}

	n.mu.Lock()
	n.query = query
	n.results = results
	n.index = -1
	if len(results) > 0 {
		n.index = 0
	}
	n.mu.Unlock()

	if len(results) > 0 {
		n.focus(results[0])
	} else {
		n.clearHighlight()
	}
	out := make([]int, len(results))
	copy(out, results)
	return out
}

// Next moves to the following result, wrapping to the first.
func (n *Navigator) Next() (int, bool) {
	return n.step(1)
}

// Previous moves to the preceding result, wrapping to the last.
func (n *Navigator) Previous() (int, bool) {
	return n.step(-1)
}

func (n *Navigator) step(delta int) (int, bool) {
	n.mu.Lock()
	count := len(n.results)
	if count == 0 {
		n.mu.Unlock()
		return 0, false
	}
	n.index = ((n.index+delta)%count + count) % count
	id := n.results[n.index]
	n.mu.Unlock()

	n.focus(id)
	return id, true
}

// Cursor returns the current search state.
func (n *Navigator) Cursor() Cursor {
	n.mu.Lock()
	defer n.mu.Unlock()
	results := make([]int, len(n.results))
	copy(results, n.results)
	return Cursor{Query: n.query, Results: results, Index: n.index, Highlighted: n.highlighted}
}

// Clear drops the results and any highlight.
func (n *Navigator) Clear() {
	n.mu.Lock()
	n.query = ""
	n.results = nil
	n.index = -1
	n.mu.Unlock()
	n.clearHighlight()
}

// Close stops the highlight timer.
func (n *Navigator) Close() {
	n.clearHighlight()
}

func (n *Navigator) focus(id int) {
	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.highlighted = id
	n.timer = time.AfterFunc(n.highlight, func() {
		n.mu.Lock()
		if n.highlighted == id {
			n.highlighted = 0
		}
		n.mu.Unlock()
	})
	onFocus := n.onFocus
	n.mu.Unlock()

	if onFocus != nil {
		onFocus(id)
	}
}

func (n *Navigator) clearHighlight() {
	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.highlighted = 0
	n.mu.Unlock()
}
