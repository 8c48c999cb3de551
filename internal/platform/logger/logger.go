package logger

import (
	"log/slog"
	"os"
)

// New returns a structured JSON logger writing to stdout. Level defaults to
// info; set SIGIL_LOG_LEVEL=debug for verbose output.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("SIGIL_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
