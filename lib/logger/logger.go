// Package logger builds the structured slog logger shared by every component.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup returns a slog.Logger writing to w with the given level ("debug", "info", "warn", "error")
// and format ("json" or "text"). Unknown levels fall back to info.
func Setup(w io.Writer, level, format string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// SetupDefault installs the logger built by Setup as the process-wide default and returns it.
func SetupDefault(w io.Writer, level, format string) *slog.Logger {
	l := Setup(w, level, format)
	slog.SetDefault(l)
	return l
}

// ParseLevel maps a level name onto slog.Level.
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

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
