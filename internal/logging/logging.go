// Package logging provides the shared structured logger.
package logging

import (
	"log/slog"
	"os"
)

// New creates the JSON logger the gateway binaries use.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
