// Package logging sets up the process wide slog logger
package logging

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Manu343726/framevars/pkg/utils"
	slogmulti "github.com/samber/slog-multi"
)

var ErrUnknownLevel = errors.New("unknown log level")

type Options struct {
	// debug, info, warn or error. Empty means info.
	Level string
	// Optional file receiving JSON records of every level
	File string
	// Text records go here. Nil means stderr.
	Console io.Writer
}

// ParseLevel converts a level name into a slog level
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, utils.MakeError(ErrUnknownLevel, "'%s'", name)
	}
}

// New builds a logger writing text records to the console and, if a file is
// configured, JSON records to the file. The returned function closes the
// file.
func New(opts Options) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: level}),
	}
	closer := func() error { return nil }

	if opts.File != "" {
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, utils.MakeError(err, "failed to open log file '%s'", opts.File)
		}

		handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}))
		closer = file.Close
	}

	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}

// Setup builds a logger with New and installs it as the default one
func Setup(opts Options) (*slog.Logger, func() error, error) {
	logger, closer, err := New(opts)
	if err != nil {
		return nil, nil, err
	}

	slog.SetDefault(logger)
	return logger, closer, nil
}
