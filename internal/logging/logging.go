// Package logging configures the process-wide slog logger from flags and
// configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joeycumines/relayframe/internal/config"
)

// Options is a resolved logging configuration.
type Options struct {
	Level     slog.Level
	File      string
	MaxSizeMB int
	MaxFiles  int
}

// ParseLevel accepts debug, info, warn and error, case-insensitively. An
// empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", s)
	}
}

// Resolve merges flags with configuration. Non-empty flags win; cfg may be
// nil.
func Resolve(flagFile, flagLevel string, cfg *config.Config) (Options, error) {
	schema := config.DefaultSchema()
	if cfg == nil {
		cfg = config.NewConfig()
	}

	levelStr := flagLevel
	if levelStr == "" {
		levelStr = schema.Resolve(cfg, "log.level")
	}
	level, err := ParseLevel(levelStr)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		Level:     level,
		File:      flagFile,
		MaxSizeMB: schema.ResolveInt(cfg, "log.max-size-mb"),
		MaxFiles:  schema.ResolveInt(cfg, "log.max-files"),
	}
	if opts.File == "" {
		opts.File = schema.Resolve(cfg, "log.file")
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxFiles < 0 {
		opts.MaxFiles = 5
	}
	return opts, nil
}

// New builds a logger. With a file configured it writes JSON to a rotating
// file; otherwise text to stderr. The returned closer must be closed on exit.
func New(opts Options, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	if opts.File == "" {
		return slog.New(slog.NewTextHandler(stderr, handlerOpts)), io.NopCloser(nil), nil
	}
	w, err := NewRotatingFileWriter(opts.File, opts.MaxSizeMB, opts.MaxFiles)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
	}
	return slog.New(slog.NewJSONHandler(w, handlerOpts)), w, nil
}
