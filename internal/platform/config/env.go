// Package config reads process settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server is everything cmd/server needs to start.
type Server struct {
	HTTPAddr      string        `env:"TECHRACE_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr      string        `env:"TECHRACE_GRPC_ADDR" envDefault:":9090"`
	DBPath        string        `env:"TECHRACE_DB_PATH" envDefault:"data/techrace.db"`
	ConfigDir     string        `env:"TECHRACE_CONFIG_DIR" envDefault:"configs"`
	WatchInterval time.Duration `env:"TECHRACE_WATCH_INTERVAL" envDefault:"2s"`
	// Seed makes every game reproducible when non-zero.
	Seed uint64 `env:"TECHRACE_SEED"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServer parses Server from the environment.
func LoadServer() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return Server{}, err
	}
	if cfg.WatchInterval <= 0 {
		return Server{}, fmt.Errorf("parse env: TECHRACE_WATCH_INTERVAL must be positive, got %s", cfg.WatchInterval)
	}
	return cfg, nil
}
