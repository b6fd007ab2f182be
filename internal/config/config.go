package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the server's environment configuration. Reference-deployment
// defaults: 20s turn timeout, 2s trick settle, 2s between match games.
type Config struct {
	Addr          string
	DBPath        string
	APIBaseURL    string
	APIToken      string
	TurnTimeout   time.Duration
	SettleDelay   time.Duration
	NextGameDelay time.Duration
	DefaultStake  int
	Development   bool
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load() (Config, error) {
	cfg := Config{
		Addr:          ":8080",
		DBPath:        "bisca.db",
		TurnTimeout:   20 * time.Second,
		SettleDelay:   2 * time.Second,
		NextGameDelay: 2 * time.Second,
		DefaultStake:  2,
	}

	if p := os.Getenv("PORT"); p != "" {
		cfg.Addr = ":" + p
	}
	if p := os.Getenv("DB_PATH"); p != "" {
		cfg.DBPath = p
	}
	cfg.APIBaseURL = os.Getenv("API_BASE_URL")
	cfg.APIToken = os.Getenv("API_TOKEN")
	cfg.Development = os.Getenv("ENV") != "production"

	var err error
	if cfg.TurnTimeout, err = duration("TURN_TIMEOUT", cfg.TurnTimeout); err != nil {
		return cfg, err
	}
	if cfg.SettleDelay, err = duration("SETTLE_DELAY", cfg.SettleDelay); err != nil {
		return cfg, err
	}
	if cfg.NextGameDelay, err = duration("NEXT_GAME_DELAY", cfg.NextGameDelay); err != nil {
		return cfg, err
	}
	if s := os.Getenv("DEFAULT_STAKE"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("invalid DEFAULT_STAKE %q", s)
		}
		cfg.DefaultStake = n
	}
	return cfg, nil
}

func duration(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	if d <= 0 {
		return def, fmt.Errorf("%s must be positive, got %q", name, v)
	}
	return d, nil
}
