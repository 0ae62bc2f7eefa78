// Package config loads process configuration from the environment.
package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every knob the api and worker binaries read. Durations are
// carried as milliseconds to match the deployment environment's variable
// names; use the accessor methods in Go code.
type Config struct {
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	APIAddr string `env:"API_ADDR" envDefault:":8080"`

	// DatabaseDSN selects the backend: postgres:// DSNs open PostgreSQL,
	// anything else is treated as a SQLite path.
	DatabaseDSN string `env:"DATABASE_DSN" envDefault:"applyn.db"`

	// RedisAddr enables the wake-signal notifier when set.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	WorkerID          string `env:"WORKER_ID"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY" envDefault:"2"`

	MaxBuildAttempts  int `env:"MAX_BUILD_ATTEMPTS" envDefault:"3"`
	LockTTLMS         int `env:"BUILD_JOB_LOCK_TTL_MS" envDefault:"1800000"`
	PollIntervalMS    int `env:"WORKER_POLL_INTERVAL_MS" envDefault:"1000"`
	JanitorIntervalMS int `env:"JANITOR_INTERVAL_MS" envDefault:"60000"`
	BuildTimeoutMS    int `env:"BUILD_TIMEOUT_MS" envDefault:"900000"`

	ToolchainConfig string `env:"TOOLCHAIN_CONFIG"`
	ArtifactDir     string `env:"ARTIFACT_DIR" envDefault:"/var/lib/applyn/artifacts"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LockTTL is how long a claim holds before another worker may reclaim it.
func (c Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMS) * time.Millisecond
}

// PollInterval is the idle wait between empty claim polls.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// JanitorInterval is the cadence of the expired-lease sweep.
func (c Config) JanitorInterval() time.Duration {
	return time.Duration(c.JanitorIntervalMS) * time.Millisecond
}

// BuildTimeout bounds a single toolchain invocation.
func (c Config) BuildTimeout() time.Duration {
	return time.Duration(c.BuildTimeoutMS) * time.Millisecond
}

// IsPostgres reports whether the DSN points at PostgreSQL.
func (c Config) IsPostgres() bool {
	return strings.HasPrefix(c.DatabaseDSN, "postgres://") ||
		strings.HasPrefix(c.DatabaseDSN, "postgresql://")
}
