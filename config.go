package cidvault

import (
	"log/slog"
	"os"

	"github.com/sirupsen/logrus"
)

// Config configures a vault instance. Only Paths[0] is used at the moment.
type Config struct {
	// Paths contains data directories. Currently only Paths[0] is used.
	Paths []string
	// MinimumFreeGB is a free-space floor checked before opening the
	// ledger. Zero disables the check.
	MinimumFreeGB int
	// Logger is an optional structured logger. If nil, a stderr logger is
	// used.
	Logger *slog.Logger
	// LedgerLogger is the logger handed to the ledger layer. If nil, a
	// quiet default is used.
	LedgerLogger *logrus.Logger
	// InMemory runs the ledger without touching disk. Used by tests.
	InMemory bool
}

func defaultLogger() *slog.Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(h)
}

func defaultLedgerLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}
