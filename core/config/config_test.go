package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"channel-manager/core/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "channel", cfg.Provider.Name)
	assert.False(t, cfg.Storage.Enabled)
	assert.Equal(t, 30, cfg.Sync.DefaultPullDays)
	assert.Equal(t, 90, cfg.Sync.CalendarDays)
	assert.True(t, cfg.Sync.AllowOverbookingOnPull)
	assert.Equal(t, 5*time.Minute, cfg.Sync.RefreshBuffer())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SERVER_PORT=9090\nSECRET_KEY=from-file\n"), 0o600))
	t.Setenv("SERVER_PORT", "")
	t.Setenv("SECRET_KEY", "")
	t.Setenv("SYNC_ALLOW_OVERBOOKING_ON_PULL", "false")
	t.Setenv("SYNC_DEFAULT_PULL_DAYS", "7")
	t.Setenv("PROVIDER_BASE_URL", "http://localhost:9999")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "from-file", cfg.Secret.Key)
	assert.False(t, cfg.Sync.AllowOverbookingOnPull)
	assert.Equal(t, 7, cfg.Sync.DefaultPullDays)
	assert.Equal(t, "http://localhost:9999", cfg.Provider.BaseURL)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	assert.ErrorIs(t, err, server.ErrMissingApiKey)
	assert.ErrorIs(t, err, ErrMissingSecretKey)

	cfg.Server.ApiKey = "admin"
	cfg.Secret.Key = "k"
	assert.NoError(t, cfg.Validate())
}
