// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Shivanand-hulikatti/ecopoints/internal/database"
	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ActionPoints holds the points granted per self-reported action kind.
type ActionPoints struct {
	Report    int64 `env:"ECO_POINTS_REPORT" envDefault:"10"`
	Recycling int64 `env:"ECO_POINTS_RECYCLING" envDefault:"20"`
	Education int64 `env:"ECO_POINTS_EDUCATION" envDefault:"15"`
	Other     int64 `env:"ECO_POINTS_OTHER" envDefault:"5"`
}

// For returns the points for kind and whether the kind may be self-reported.
func (p ActionPoints) For(kind model.SourceKind) (int64, bool) {
	switch kind {
	case model.KindReport:
		return p.Report, true
	case model.KindRecycling:
		return p.Recycling, true
	case model.KindEducation:
		return p.Education, true
	case model.KindOther:
		return p.Other, true
	}
	return 0, false
}

// Config is the full service configuration.
type Config struct {
	Port       string          `env:"PORT" envDefault:"8080"`
	Driver     string          `env:"ECO_STORE_DRIVER" envDefault:"postgres"`
	SQLitePath string          `env:"ECO_SQLITE_PATH" envDefault:"ecopoints.db"`
	Postgres   database.Config

	LogLevel  string `env:"ECO_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"ECO_LOG_FORMAT" envDefault:"json"`

	LeaderboardTZ       string       `env:"ECO_LEADERBOARD_TZ" envDefault:"UTC"`
	DefaultRewardPoints int          `env:"ECO_DEFAULT_REWARD_POINTS" envDefault:"50"`
	ActionPoints        ActionPoints

	ReconcileSchedule string `env:"ECO_RECONCILE_SCHEDULE" envDefault:"@every 15m"`
	NotifyQueueSize   int    `env:"ECO_NOTIFY_QUEUE_SIZE" envDefault:"1024"`

	RateLimitPerMinute int `env:"ECO_RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	RateLimitBurst     int `env:"ECO_RATE_LIMIT_BURST" envDefault:"20"`

	DirectoryCacheSize int           `env:"ECO_DIRECTORY_CACHE_SIZE" envDefault:"1024"`
	DirectoryCacheTTL  time.Duration `env:"ECO_DIRECTORY_CACHE_TTL" envDefault:"30s"`

	OTELEndpoint string `env:"ECO_OTEL_ENDPOINT"`
}

// Parse loads configuration from environment variables and validates it.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Location resolves the leaderboard reference timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.LeaderboardTZ)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard timezone %q: %w", c.LeaderboardTZ, err)
	}
	return loc, nil
}

func (c Config) validate() error {
	switch c.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported store driver %q", c.Driver)
	}
	if c.DefaultRewardPoints < 0 {
		return fmt.Errorf("default reward points must be non-negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
