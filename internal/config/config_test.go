package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadClientDefaults(t *testing.T) {
	cfg := LoadClient()
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.RetryBase)
	assert.Equal(t, 3, cfg.MaxSyncRetries)
	assert.Equal(t, 2, cfg.MaxSendRetries)
	assert.Equal(t, time.Second, cfg.SendRetryDelay)
}

func TestLoadClientOverrides(t *testing.T) {
	t.Setenv("CHAT_POLL_INTERVAL", "5s")
	t.Setenv("CHAT_USER_ID", "12")
	t.Setenv("CHAT_RETRY_BASE", "nonsense")

	cfg := LoadClient()
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 12, cfg.UserID)
	assert.Equal(t, 2*time.Second, cfg.RetryBase)
}

func TestLoadServerBool(t *testing.T) {
	t.Setenv("DEBUG_ROUTES", "true")
	t.Setenv("PORT", "9999")
	cfg := LoadServer()
	assert.True(t, cfg.DebugRoutes)
	assert.Equal(t, "9999", cfg.Port)
}

func TestLoadServerWriteRate(t *testing.T) {
	t.Setenv("WRITE_RATE_RPS", "0.5")
	t.Setenv("WRITE_RATE_BURST", "oops")
	cfg := LoadServer()
	assert.Equal(t, 0.5, cfg.WriteRateRPS)
	assert.Equal(t, 10, cfg.WriteRateBurst)
}
