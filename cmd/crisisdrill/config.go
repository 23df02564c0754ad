package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/rendis/crisisdrill/internal/scheduler"
	"github.com/rendis/crisisdrill/internal/scoring"
)

const envPrefix = "CRISISDRILL_"

// Config holds the crisisdrill server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath          string `json:"db_path" env:"DB_PATH"`
	LogLevel        string `json:"log_level" env:"LOG_LEVEL"`
	LogFormat       string `json:"log_format" env:"LOG_FORMAT"`
	ScoringStrategy string `json:"scoring_strategy" env:"SCORING_STRATEGY"`
	ReaperSchedule  string `json:"reaper_schedule" env:"REAPER_SCHEDULE"`
	SessionTTL      string `json:"session_ttl" env:"SESSION_TTL"`
}

func defaultConfig(dir string) Config {
	return Config{
		DBPath:          filepath.Join(dir, "crisisdrill.db"),
		LogLevel:        "info",
		LogFormat:       "text",
		ScoringStrategy: scoring.StrategySession,
		ReaperSchedule:  scheduler.DefaultSchedule,
		SessionTTL:      "24h",
	}
}

func crisisdrillDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".crisisdrill"
	}
	return filepath.Join(home, ".crisisdrill")
}

func settingsPath(dir string) string {
	return filepath.Join(dir, "settings.json")
}

// loadConfig layers settings.json from dir and then environ over the
// defaults. A nil environ reads the process environment.
func loadConfig(dir string, environ map[string]string) (Config, error) {
	cfg := defaultConfig(dir)

	data, err := os.ReadFile(settingsPath(dir))
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, &cfg); jsonErr != nil {
			return cfg, fmt.Errorf("parse %s: %w", settingsPath(dir), jsonErr)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("read settings: %w", err)
	}

	opts := env.Options{Prefix: envPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if _, err := scoring.New(c.ScoringStrategy); err != nil {
		return err
	}
	ttl, err := c.ttl()
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("session_ttl must be positive, got %s", c.SessionTTL)
	}
	return nil
}

func (c Config) ttl() (time.Duration, error) {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid session_ttl %q: %w", c.SessionTTL, err)
	}
	return d, nil
}

func binDir(dir string) string {
	return filepath.Join(dir, "bin")
}
