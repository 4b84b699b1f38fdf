package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("testdata/missing.yaml")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 15*time.Minute, cfg.Audit.VerifyInterval)
	assert.Equal(t, 50, cfg.Audit.RecentLimit)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Run("top-level key", func(t *testing.T) {
		t.Setenv("CCE_LOG_LEVEL", "debug")

		cfg, err := Load("testdata/missing.yaml")
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("nested multi-word key", func(t *testing.T) {
		t.Setenv("CCE_DATABASE__MAX_OPEN_CONNS", "50")
		t.Setenv("CCE_DATABASE__CONN_MAX_LIFETIME", "90s")

		cfg, err := Load("testdata/missing.yaml")
		require.NoError(t, err)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 90*time.Second, cfg.Database.ConnMaxLifetime)
	})

	t.Run("nested bool", func(t *testing.T) {
		t.Setenv("CCE_REDIS__ENABLED", "true")
		t.Setenv("CCE_REDIS__URL", "redis://localhost:6379/1")

		cfg, err := Load("testdata/missing.yaml")
		require.NoError(t, err)
		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, "redis://localhost:6379/1", cfg.Redis.URL)
	})

	t.Run("unrelated defaults survive", func(t *testing.T) {
		t.Setenv("CCE_AUDIT__RECENT_LIMIT", "10")

		cfg, err := Load("testdata/missing.yaml")
		require.NoError(t, err)
		assert.Equal(t, 10, cfg.Audit.RecentLimit)
		assert.Equal(t, 15*time.Minute, cfg.Audit.VerifyInterval)
	})
}
