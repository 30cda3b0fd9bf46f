// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels. Unknown
// values fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init builds a text logger and installs it as slog's default. The level and
// sink fall back to NAFSY_LOG_LEVEL and NAFSY_LOG_SINK when empty. A sink of
// the form "file:/path" appends to that file; anything else writes to stderr.
// The returned closer releases the sink.
func Init(level, sink string) (*slog.Logger, io.Closer) {
	if strings.TrimSpace(level) == "" {
		level = os.Getenv("NAFSY_LOG_LEVEL")
	}
	if strings.TrimSpace(sink) == "" {
		sink = os.Getenv("NAFSY_LOG_SINK")
	}

	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if strings.HasPrefix(sink, "file:") {
		path := strings.TrimPrefix(sink, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging: open %s: %v\n", path, err)
		} else {
			w = f
			closer = f
		}
	}

	log := New(w, level)
	slog.SetDefault(log)
	return log, closer
}

// New returns a text logger writing to w at the given level.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return New(io.Discard, "error")
}

// OrDefault returns log, or slog.Default() when log is nil.
func OrDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
