// Package logging configures the process-wide slog default from the
// environment: LOG_LEVEL selects verbosity, LOG_FORMAT=json switches
// the handler for log shippers.
package logging

import (
	"log/slog"
	"os"
)

// Init installs the default logger. Errors only unless LOG_LEVEL says
// otherwise; every record carries the app tag.
func Init() {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler).With("app", "huddle"))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
