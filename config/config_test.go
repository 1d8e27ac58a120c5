package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_SyncIntervals(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		LoadConfig()
		require.NotNil(t, AppConfig)
		assert.Equal(t, 5*time.Second, AppConfig.SyncRetryDelay)
		assert.Equal(t, time.Minute, AppConfig.SyncMaxRetryDelay)
		assert.Equal(t, 30*time.Second, AppConfig.SyncRefreshInterval)
	})

	t.Run("refresh interval is read from its own key", func(t *testing.T) {
		t.Setenv("SYNC_REFRESH_INTERVAL", "45s")
		t.Setenv("SYNC_MAX_RETRY_DELAY", "10m")
		LoadConfig()
		assert.Equal(t, 45*time.Second, AppConfig.SyncRefreshInterval)
		assert.Equal(t, 10*time.Minute, AppConfig.SyncMaxRetryDelay)
	})

	t.Run("backoff cap does not move the refresh interval", func(t *testing.T) {
		t.Setenv("SYNC_MAX_RETRY_DELAY", "2h")
		LoadConfig()
		assert.Equal(t, 30*time.Second, AppConfig.SyncRefreshInterval)
	})

	t.Run("invalid duration falls back to the default", func(t *testing.T) {
		t.Setenv("SYNC_REFRESH_INTERVAL", "soon")
		LoadConfig()
		assert.Equal(t, 30*time.Second, AppConfig.SyncRefreshInterval)
	})
}
