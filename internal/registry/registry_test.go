package registry

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cidvault/cidvault/internal/ledger"
)

func newTestRegistries(t *testing.T) *Registries {
	t.Helper()
	store, err := ledger.NewStore(ledger.StoreConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}
