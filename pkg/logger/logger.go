package logger

import (
	"log/slog"
	"os"
)

// InitLogger builds the shared structured logger. Level comes from
// LOG_LEVEL (debug/info/warn/error), defaulting to info.
func InitLogger() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	l := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(l)
	return l
}
