// Package logbuf collects the log lines of one request so they can be written
// as a single record when the request ends.
package logbuf

import (
	"log/slog"
	"strconv"
	"sync"
	"time"
)

type Entry struct {
	Level   slog.Level
	Message string
	At      time.Time
	Attrs   []slog.Attr
}

type Logger struct {
	mu      sync.Mutex
	attrs   []slog.Attr
	entries []Entry
}

func New(attrs ...slog.Attr) *Logger {
	return &Logger{attrs: append([]slog.Attr(nil), attrs...)}
}

// With returns a child that starts with l's attributes and has its own,
// empty, entry list.
func (l *Logger) With(attrs ...slog.Attr) *Logger {
	l.mu.Lock()
	inherited := append([]slog.Attr(nil), l.attrs...)
	l.mu.Unlock()
	return &Logger{attrs: append(inherited, attrs...)}
}

// Add attaches attributes to the final record rather than to an entry.
func (l *Logger) Add(attrs ...slog.Attr) {
	l.mu.Lock()
	l.attrs = append(l.attrs, attrs...)
	l.mu.Unlock()
}

func (l *Logger) Debug(message string, attrs ...slog.Attr) {
	l.append(slog.LevelDebug, message, attrs)
}

func (l *Logger) Info(message string, attrs ...slog.Attr) {
	l.append(slog.LevelInfo, message, attrs)
}

func (l *Logger) Warn(message string, attrs ...slog.Attr) {
	l.append(slog.LevelWarn, message, attrs)
}

func (l *Logger) Error(message string, attrs ...slog.Attr) {
	l.append(slog.LevelError, message, attrs)
}

// Level is the highest level among the buffered entries, and at least Info.
func (l *Logger) Level() slog.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	level := slog.LevelInfo
	for _, entry := range l.entries {
		if entry.Level > level {
			level = entry.Level
		}
	}
	return level
}

// Flush empties the buffer and returns its content as attributes for one
// slog record.
func (l *Logger) Flush() []slog.Attr {
	l.mu.Lock()
	entries := l.entries
	l.entries = nil
	out := append([]slog.Attr(nil), l.attrs...)
	l.mu.Unlock()

	if len(entries) == 0 {
		return out
	}
	lines := make([]any, 0, len(entries))
	for i, entry := range entries {
		args := []any{
			slog.String("level", entry.Level.String()),
			slog.String("msg", entry.Message),
			slog.Time("at", entry.At),
		}
		for _, attr := range entry.Attrs {
			args = append(args, attr)
		}
		lines = append(lines, slog.Group(strconv.Itoa(i), args...))
	}
	return append(out, slog.Group("entries", lines...))
}

func (l *Logger) append(level slog.Level, message string, attrs []slog.Attr) {
	entry := Entry{Level: level, Message: message, At: time.Now()}
	if len(attrs) > 0 {
		entry.Attrs = append(entry.Attrs, attrs...)
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

