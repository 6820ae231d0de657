// Package logging assembles the slog logger used by the CLI.
//
// Console output goes to stderr with coloured level tags when stderr is a
// terminal; JSON output is available for scripting. An optional log file
// receives the same records as stderr.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/chaz8081/vidscribe/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string // "console" or "json"
	File   string
	// Writer overrides stderr; used by tests.
	Writer io.Writer
}

// New constructs a slog logger. The returned close function releases the log
// file, if any, and is always safe to call.
func New(opts Options) (*slog.Logger, func() error, error) {
	closer := func() error { return nil }

	out := opts.Writer
	color := false
	if out == nil {
		out = os.Stderr
		color = isTerminal(os.Stderr)
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, closer, fmt.Errorf("ensure log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closer, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(out, f)
		color = false
		closer = f.Close
	}

	level := new(slog.LevelVar)
	level.Set(config.ParseLogLevel(opts.Level))

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	case "console", "":
		handler = newConsoleHandler(out, level, color)
	default:
		_ = closer()
		return nil, func() error { return nil }, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	return slog.New(handler), closer, nil
}

// NewFromConfig creates a logger from application config. A nil w means
// stderr.
func NewFromConfig(cfg *config.Config, w io.Writer) (*slog.Logger, func() error, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	return New(Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile, Writer: w})
}

// NewNop returns a logger that discards all output.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
