// Package logging builds the slog loggers used by the daemon and the CLI.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

type Options struct {
	Level slog.Level
	// LogPath, when set, receives a copy of every record.
	LogPath   string
	AddSource bool
}

// New returns a tint logger writing to stdout and, if configured, to a log
// file. Colour is only used when stdout is a terminal. The returned closer
// releases the log file.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var writer io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if opts.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LogPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		file, err := os.OpenFile(opts.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		writer = io.MultiWriter(os.Stdout, file)
		closer = file
	}
	return slog.New(NewHandler(writer, opts.Level, opts.AddSource, !isTerminal(os.Stdout) || opts.LogPath != "")), closer, nil
}

// NewHandler is the tint handler shared by every logger the program builds.
func NewHandler(w io.Writer, level slog.Level, addSource, noColor bool) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		AddSource:  addSource,
		NoColor:    noColor,
		TimeFormat: "2006-01-02 15:04:05.000",
	})
}

// Stderr is the logger for short-lived CLI commands.
func Stderr(level slog.Level) *slog.Logger {
	return slog.New(NewHandler(os.Stderr, level, false, !isTerminal(os.Stderr)))
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
