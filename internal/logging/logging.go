// Package logging configures the process-wide zerolog logger with console
// output and rotated file output.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger settings.
type Config struct {
	Level   string // debug, info, warn, error
	Dir     string // directory for rotated log files, empty = console only
	Console bool
}

// DefaultConfig returns console-only info logging.
func DefaultConfig() Config {
	return Config{Level: "info", Console: true}
}

// Setup replaces the global zerolog logger according to cfg and returns it.
func Setup(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}
	if cfg.Dir != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, "voxline.log"),
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	logger := zerolog.New(io.MultiWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	log.Logger = logger
	return logger
}
