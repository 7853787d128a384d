package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":5200", cfg.Server.Addr)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 10*time.Second, cfg.Automation.TickInterval)
	assert.Equal(t, 2*time.Minute, cfg.Automation.MatchDuration)
	assert.Equal(t, 3*time.Minute, cfg.Automation.SyncGrace)
	assert.Equal(t, 10, cfg.Game.PointsPerCorrect)
	assert.Equal(t, 3, cfg.Game.DefaultMaxLives)
	assert.Equal(t, "en", cfg.Notifications.Language)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survivor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":8080"
  allowed_origins: ["https://pool.example"]
database:
  driver: memory
automation:
  tick_interval: 5s
  match_duration: 90m
game:
  points_per_correct: 3
notifications:
  language: es
`), 0o600))

	t.Setenv("MATCH_DURATION", "105m")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("AUTOMATION_ENABLED", "false")
	t.Setenv("DEFAULT_MAX_LIVES", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Automation.TickInterval)
	assert.Equal(t, 105*time.Minute, cfg.Automation.MatchDuration, "env beats the file")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Automation.Enabled)
	assert.Equal(t, 3, cfg.Game.DefaultMaxLives, "unparsable values keep the default")
	assert.Equal(t, 3, cfg.Game.PointsPerCorrect)
	assert.Equal(t, "es", cfg.Notifications.Language)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.Server.GatewayToken = "secret"
		c.Database.URL = "postgres://localhost/survivor"
		return c
	}

	c := valid()
	require.NoError(t, c.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing gateway token", func(c *Config) { c.Server.GatewayToken = "" }, "GAME_SERVICE_TOKEN"},
		{"postgres without url", func(c *Config) { c.Database.URL = "" }, "DATABASE_URL"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }, "STORAGE_DRIVER"},
		{"zero tick", func(c *Config) { c.Automation.TickInterval = 0 }, "intervals"},
		{"lives out of range", func(c *Config) { c.Game.DefaultMaxLives = 11 }, "DEFAULT_MAX_LIVES"},
		{"bad language", func(c *Config) { c.Notifications.Language = "not a tag!" }, "NOTIFICATION_LANGUAGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	mem := valid()
	mem.Database = DatabaseConfig{Driver: DriverMemory}
	assert.NoError(t, mem.Validate(), "memory driver needs no url")
}
