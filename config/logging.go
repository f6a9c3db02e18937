package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

type LogConfig struct {
	Level  slog.Level
	Format string    // "json" or "text"
	Output io.Writer // Defaults to stdout
}

func DefaultLogConfig() LogConfig {
	return LogConfig{Level: slog.LevelInfo, Format: FormatJSON, Output: os.Stdout}
}

// QuietLogConfig only reports warnings and errors.
func QuietLogConfig() LogConfig {
	return LogConfig{Level: slog.LevelWarn, Format: FormatJSON, Output: os.Stdout}
}

// SuppressedLogConfig discards everything. Used by tests.
func SuppressedLogConfig() LogConfig {
	return LogConfig{Level: slog.LevelError, Format: FormatText, Output: io.Discard}
}

func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// NewLogger builds a logger for cfg without installing it.
func NewLogger(cfg LogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}
	var handler slog.Handler
	if cfg.Format == FormatText {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler)
}

// SetupLogger installs a logger for cfg as the slog default.
func SetupLogger(cfg LogConfig) *slog.Logger {
	logger := NewLogger(cfg)
	slog.SetDefault(logger)
	return logger
}
