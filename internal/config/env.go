// Package config loads operator harness settings from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// Config holds the harness settings
type Config struct {
	MaxClients   int      `env:"QLBRIDGE_MAX_CLIENTS" envDefault:"16"`
	PluginDir    string   `env:"QLBRIDGE_PLUGIN_DIR" envDefault:"plugins"`
	DBPath       string   `env:"QLBRIDGE_DB" envDefault:"qlbridge.db"`
	LogFile      string   `env:"QLBRIDGE_LOG_FILE" envDefault:"qlbridge_debug.log"`
	CommandLog   string   `env:"QLBRIDGE_COMMAND_LOG" envDefault:"commands.log"`
	Players      []string `env:"QLBRIDGE_PLAYERS" envDefault:"Anarki,Doom,Keel" envSeparator:","`
	Latin1Output bool     `env:"QLBRIDGE_LATIN1_OUTPUT" envDefault:"false"`
}

// Load parses Config from the environment and checks it
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.MaxClients <= 0 {
		return Config{}, fmt.Errorf("QLBRIDGE_MAX_CLIENTS must be positive, got %d", cfg.MaxClients)
	}
	if len(cfg.Players) > cfg.MaxClients {
		return Config{}, fmt.Errorf("%d players do not fit in %d client slots", len(cfg.Players), cfg.MaxClients)
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
