package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for a single-household deployment.
const (
	defaultPort          = "8080"
	defaultDBPath        = "ladle.db"
	defaultWindowDays    = 9
	defaultBackwardsDays = 3
	defaultPaydayAnchor  = "2025-09-18"
)

// Config holds everything the server needs at startup. It is built once in
// main and passed down explicitly; nothing reads the environment after Load.
type Config struct {
	Port          string
	DBPath        string
	LogLevel      string
	WindowDays    int
	BackwardsDays int
	PaydayAnchor  time.Time
}

// Load reads configuration from the environment, after loading a .env file
// if one is present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:     envOr("LADLE_PORT", defaultPort),
		DBPath:   envOr("LADLE_DB_PATH", defaultDBPath),
		LogLevel: envOr("LADLE_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.WindowDays, err = envInt("LADLE_WINDOW_DAYS", defaultWindowDays); err != nil {
		return Config{}, err
	}
	if cfg.BackwardsDays, err = envInt("LADLE_BACKWARDS_DAYS", defaultBackwardsDays); err != nil {
		return Config{}, err
	}

	anchor := envOr("LADLE_PAYDAY_ANCHOR", defaultPaydayAnchor)
	cfg.PaydayAnchor, err = time.Parse(time.DateOnly, anchor)
	if err != nil {
		return Config{}, fmt.Errorf("LADLE_PAYDAY_ANCHOR: invalid date %q", anchor)
	}

	if cfg.WindowDays < 1 {
		return Config{}, fmt.Errorf("LADLE_WINDOW_DAYS must be at least 1, got %d", cfg.WindowDays)
	}
	if cfg.BackwardsDays < 0 {
		return Config{}, fmt.Errorf("LADLE_BACKWARDS_DAYS must not be negative, got %d", cfg.BackwardsDays)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}
