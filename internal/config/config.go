// Package config maps environment variables onto the application's settings
// via envconfig. Every knob has a default suitable for local development
// except the Postgres DSN, which must be provided.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port            uint16        `envconfig:"API_PORT" default:"8080"`
	LogLevel        slog.Level    `envconfig:"APP_LOG_LEVEL" default:"INFO"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	Postgres PostgresConfig
	Redis    RedisConfig
}

type PostgresConfig struct {
	DSN             string        `envconfig:"PG_DSN" required:"true"`
	MaxOpenConns    int           `envconfig:"PG_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"PG_MAX_IDLE_CONNS" default:"5"`
	ConnMaxIdleTime time.Duration `envconfig:"PG_CONN_MAX_IDLE_TIME" default:"5m"`
	ConnMaxLifetime time.Duration `envconfig:"PG_CONN_MAX_LIFETIME" default:"30m"`
}

// RedisConfig is optional. An empty Addr disables the bet idempotency fast
// path; the ledger's unique key constraint still guarantees correctness.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:""`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func Load() (*Config, error) {
	cfg := new(Config)

	err := envconfig.Process("", cfg)
	if err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	return cfg, nil
}
