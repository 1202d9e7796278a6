// Package logging builds the consumer's zerolog logger: a human readable
// console stream plus an append-only JSON log file.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	// FilePath is the log file, created if missing and appended to otherwise. Empty disables it.
	FilePath string
	// Level is a zerolog level name. Empty means info.
	Level string
	// Console receives console formatted output. Nil means os.Stdout.
	Console io.Writer
}

// Sink owns the log file behind a logger.
type Sink struct {
	file *os.File
}

// Close flushes the log file to disk and closes it. It is safe to call more than once.
func (s *Sink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	f := s.file
	s.file = nil
	syncErr := f.Sync()
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close log file %s: %w", f.Name(), err)
	}
	if syncErr != nil {
		return fmt.Errorf("failed to flush log file %s: %w", f.Name(), syncErr)
	}
	return nil
}

// New returns a logger writing to the console and, when configured, to a log file.
// The returned Sink must be closed when logging is finished.
func New(opts Options) (zerolog.Logger, *Sink, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}}

	sink := &Sink{}
	if opts.FilePath != "" {
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to open log file %s: %w", opts.FilePath, err)
		}
		sink.file = f
		writers = append(writers, f)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return logger, sink, nil
}
