package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitions(t *testing.T) {
	m := NewMachine()
	var seen []Status
	m.Observe(func(s Status) { seen = append(seen, s) })

	m.Succeeded()
	m.Retrying()
	m.Retrying()
	m.Exhausted()
	m.Reconnect()
	m.Succeeded()

	assert.Equal(t, Connected, m.Status())
	assert.Equal(t, []Status{Connected, Reconnecting, Disconnected, Reconnecting, Connected}, seen)
}
