// Package config loads service settings from an optional YAML file, then the
// environment (a .env file is honoured), then defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Automation    AutomationConfig    `yaml:"automation"`
	Game          GameConfig          `yaml:"game"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Sync          SyncConfig          `yaml:"sync"`
	Auth          AuthConfig          `yaml:"auth"`
	R2            R2Config            `yaml:"r2"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// GatewayToken is the bearer token every request must carry.
	GatewayToken string `yaml:"gateway_token"`
}

type DatabaseConfig struct {
	Driver  string `yaml:"driver"`
	URL     string `yaml:"url"`
	Verbose bool   `yaml:"verbose"`
}

type AutomationConfig struct {
	Enabled        bool          `yaml:"enabled"`
	TickInterval   time.Duration `yaml:"tick_interval"`
	StatusInterval time.Duration `yaml:"status_interval"`
	MatchDuration  time.Duration `yaml:"match_duration"`
	SyncGrace      time.Duration `yaml:"sync_grace"`
	// ResultSeed seeds the result generator; 0 uses the clock.
	ResultSeed int64 `yaml:"result_seed"`
}

type GameConfig struct {
	PointsPerCorrect int `yaml:"points_per_correct"`
	DefaultMaxLives  int `yaml:"default_max_lives"`
}

type NotificationsConfig struct {
	Language  string        `yaml:"language"`
	Retention time.Duration `yaml:"retention"`
}

type SyncConfig struct {
	ServiceURL   string        `yaml:"service_url"`
	EndpointPath string        `yaml:"endpoint_path"`
	Interval     time.Duration `yaml:"interval"`
}

type AuthConfig struct {
	ServiceURL   string `yaml:"service_url"`
	ServiceToken string `yaml:"service_token"`
}

type R2Config struct {
	AccountID       string `yaml:"account_id"`
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
	Bucket          string `yaml:"bucket"`
	CDNBaseURL      string `yaml:"cdn_base_url"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":5200",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{Driver: DriverPostgres},
		Automation: AutomationConfig{
			Enabled:        true,
			TickInterval:   10 * time.Second,
			StatusInterval: time.Minute,
			MatchDuration:  2 * time.Minute,
			SyncGrace:      3 * time.Minute,
		},
		Game: GameConfig{
			PointsPerCorrect: 10,
			DefaultMaxLives:  3,
		},
		Notifications: NotificationsConfig{
			Language:  "en",
			Retention: 30 * 24 * time.Hour,
		},
		Sync: SyncConfig{
			EndpointPath: "/api/v1/public/profiles",
			Interval:     time.Minute,
		},
	}
}

// Load reads .env (if present), then the YAML file at path (skipped when path
// is empty), then environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = envOrDefault("HTTP_ADDR", cfg.Server.Addr)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	cfg.Server.GatewayToken = envOrDefault("GAME_SERVICE_TOKEN", cfg.Server.GatewayToken)

	cfg.Database.URL = envOrDefault("DATABASE_URL", cfg.Database.URL)
	cfg.Database.Driver = strings.ToLower(envOrDefault("STORAGE_DRIVER", cfg.Database.Driver))
	cfg.Database.Verbose = boolEnvOrDefault("DATABASE_VERBOSE", cfg.Database.Verbose)

	cfg.Automation.Enabled = boolEnvOrDefault("AUTOMATION_ENABLED", cfg.Automation.Enabled)
	cfg.Automation.TickInterval = durationEnvOrDefault("AUTOMATION_TICK_INTERVAL", cfg.Automation.TickInterval)
	cfg.Automation.StatusInterval = durationEnvOrDefault("AUTOMATION_STATUS_INTERVAL", cfg.Automation.StatusInterval)
	cfg.Automation.MatchDuration = durationEnvOrDefault("MATCH_DURATION", cfg.Automation.MatchDuration)
	cfg.Automation.SyncGrace = durationEnvOrDefault("MATCH_SYNC_GRACE", cfg.Automation.SyncGrace)
	cfg.Automation.ResultSeed = int64(intEnvOrDefault("RESULT_SEED", int(cfg.Automation.ResultSeed)))

	cfg.Game.PointsPerCorrect = intEnvOrDefault("POINTS_PER_CORRECT", cfg.Game.PointsPerCorrect)
	cfg.Game.DefaultMaxLives = intEnvOrDefault("DEFAULT_MAX_LIVES", cfg.Game.DefaultMaxLives)

	cfg.Notifications.Language = envOrDefault("NOTIFICATION_LANGUAGE", cfg.Notifications.Language)
	cfg.Notifications.Retention = durationEnvOrDefault("NOTIFICATION_RETENTION", cfg.Notifications.Retention)

	cfg.Sync.ServiceURL = envOrDefault("SYNC_SERVICE_URL", cfg.Sync.ServiceURL)
	cfg.Sync.EndpointPath = envOrDefault("SYNC_ENDPOINT_PATH", cfg.Sync.EndpointPath)
	cfg.Sync.Interval = durationEnvOrDefault("PLAYER_SYNC_INTERVAL", cfg.Sync.Interval)

	cfg.Auth.ServiceURL = envOrDefault("AUTH_SERVICE_URL", cfg.Auth.ServiceURL)
	cfg.Auth.ServiceToken = envOrDefault("AUTH_SERVICE_TOKEN", cfg.Auth.ServiceToken)

	cfg.R2.AccountID = envOrDefault("CLOUDFLARE_ACCOUNT_ID", cfg.R2.AccountID)
	cfg.R2.AccessKeyID = envOrDefault("R2_ACCESS_KEY_ID", cfg.R2.AccessKeyID)
	cfg.R2.AccessKeySecret = envOrDefault("R2_ACCESS_KEY_SECRET", cfg.R2.AccessKeySecret)
	cfg.R2.Bucket = envOrDefault("R2_BUCKET_NAME", cfg.R2.Bucket)
	cfg.R2.CDNBaseURL = envOrDefault("CDN_BASE_URL", cfg.R2.CDNBaseURL)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.GatewayToken == "" {
		errs = append(errs, errors.New("GAME_SERVICE_TOKEN is required"))
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Database.Driver))
	}
	if c.Automation.TickInterval <= 0 || c.Automation.StatusInterval <= 0 {
		errs = append(errs, errors.New("automation intervals must be positive"))
	}
	if c.Automation.MatchDuration <= 0 || c.Automation.SyncGrace <= 0 {
		errs = append(errs, errors.New("match duration and sync grace must be positive"))
	}
	if c.Game.DefaultMaxLives < 1 || c.Game.DefaultMaxLives > 10 {
		errs = append(errs, errors.New("DEFAULT_MAX_LIVES must be between 1 and 10"))
	}
	if c.Game.PointsPerCorrect <= 0 {
		errs = append(errs, errors.New("POINTS_PER_CORRECT must be positive"))
	}
	if _, err := language.Parse(c.Notifications.Language); err != nil {
		errs = append(errs, fmt.Errorf("NOTIFICATION_LANGUAGE: %w", err))
	}
	if c.Notifications.Retention <= 0 {
		errs = append(errs, errors.New("NOTIFICATION_RETENTION must be positive"))
	}
	if c.Sync.ServiceURL != "" && c.Sync.Interval <= 0 {
		errs = append(errs, errors.New("PLAYER_SYNC_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}
