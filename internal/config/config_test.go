package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SYNC_POLL_INTERVAL", "")
	t.Setenv("SYNC_RETRY_DELAY", "")
	t.Setenv("NOTIFY_WINDOW", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, 3, cfg.Sync.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.Sync.RetryDelay)
	assert.Equal(t, 10*time.Second, cfg.Notification.Window)
	assert.Equal(t, "support:tickets", cfg.Push.Channel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SYNC_POLL_INTERVAL", "45")
	t.Setenv("SYNC_RETRY_DELAY", "500ms")
	t.Setenv("SUPPORT_API_URL", "http://support.local:9000/")
	t.Setenv("NOTIFY_PERMISSION", "GRANTED")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.RetryDelay)
	assert.Equal(t, "http://support.local:9000", cfg.API.BaseURL)
	assert.Equal(t, "granted", cfg.Notification.Permission)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("REDIS_DB", "0")
	t.Setenv("SYNC_POLL_INTERVAL", "-5s")
	_, err = Load()
	require.Error(t, err)
}

func TestDurationFallbackOnGarbage(t *testing.T) {
	t.Setenv("PUSH_RECONNECT_DELAY", "soon")
	assert.Equal(t, time.Second, getEnvAsDuration("PUSH_RECONNECT_DELAY", time.Second))
}
