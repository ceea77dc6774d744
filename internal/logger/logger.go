package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a component-scoped slog logger writing to stdout.
// Level is taken from LOG_LEVEL (debug, info, warn, error), defaulting to info.
func New(component string) *slog.Logger {
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: levelFromEnv()})
	return slog.New(h).With(slog.String("component", component))
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
