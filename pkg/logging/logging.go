// Package logging builds the vault's structured loggers.
package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a colorized stderr logger at the given level, for the CLI
// and server surfaces. Library code takes a *slog.Logger and does not
// care which handler backs it.
func New(level slog.Level) *slog.Logger {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
	return slog.New(handler)
}
