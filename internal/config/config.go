// Package config carries the two configuration layers: process environment
// (token and paths, fixed for the process lifetime) and the runtime settings
// file (tunables that hot-reload without restart).
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds process-level configuration resolved from the environment.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required"`
	StoragePath  string `env:"STORAGE_PATH" envDefault:"data/voxline.json"`
	SettingsPath string `env:"SETTINGS_PATH" envDefault:"data/settings.json"`
	VoicesDir    string `env:"VOICES_DIR" envDefault:"data/voices"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogDir       string `env:"LOG_DIR"`
}

// New loads .env if present and parses the environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using system environment")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
