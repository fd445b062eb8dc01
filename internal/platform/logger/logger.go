package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"contacts/internal/platform/config"
)

func level(option string) (slog.Leveler, bool) {
	switch strings.ToLower(option) {
	case "":
		return nil, true
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return nil, false
	}
}

// New builds the process logger. Unparseable options fall back to defaults
// and the fallback is logged as a warning.
func New(cfg config.LogConfig) *slog.Logger {
	var output io.Writer
	switch cfg.File {
	case "", "-":
		output = os.Stdout
	case os.DevNull:
		return slog.New(slog.DiscardHandler)
	default:
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			cfg.File = ""
			logger := New(cfg)
			logger.Warn("could not open logger file", "error", err)
			return logger
		}
		output = f
	}
	return NewWithWriter(output, cfg)
}

// NewWithWriter builds a logger writing to w; cfg.File is ignored.
func NewWithWriter(w io.Writer, cfg config.LogConfig) *slog.Logger {
	lvl, ok := level(cfg.Level)
	if !ok {
		cfg.Level = ""
		logger := NewWithWriter(w, cfg)
		logger.Warn("could not parse logger level")
		return logger
	}
	opts := slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, &opts))
	case "text", "":
		return slog.New(slog.NewTextHandler(w, &opts))
	default:
		cfg.Format = "text"
		logger := NewWithWriter(w, cfg)
		logger.Warn("could not parse logger format")
		return logger
	}
}
