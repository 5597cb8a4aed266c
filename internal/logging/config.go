package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/stocksight/stocksight/internal/config"
)

// NewFromConfig builds the runtime logger from the logging section of
// the config file. An unknown level falls back to info rather than
// failing startup.
func NewFromConfig(cfg config.LoggingConfig) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer
	switch cfg.OutputPath {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		file, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("opening log file %s: %w", cfg.OutputPath, err)
		}
		out = file
	}

	if cfg.Format == "console" || cfg.Format == "pretty" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat(cfg.TimeFormat)}
	}

	return &Logger{zl: zerolog.New(out).Level(level).With().Timestamp().Logger()}, nil
}

func timeFormat(name string) string {
	switch name {
	case "Unix":
		return time.UnixDate
	case "Kitchen":
		return time.Kitchen
	default:
		return time.RFC3339
	}
}
