package cidvault

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cidvault/cidvault/pkg/types"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	vault, err := New(Config{
		InMemory: true,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, vault.Start(ctx))
	t.Cleanup(func() { _ = vault.Close(ctx) })
	return vault
}

func TestNew_RequiresPathOrInMemory(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestOperationsBeforeStart(t *testing.T) {
	vault, err := New(Config{InMemory: true})
	require.NoError(t, err)

	require.ErrorIs(t, vault.StoreResource("user", "QmX"), ErrNotStarted)
	_, err = vault.ListOwned("user")
	require.ErrorIs(t, err, ErrNotStarted)
	_, err = vault.Objects()
	require.ErrorIs(t, err, ErrNotStarted)
	require.ErrorIs(t, vault.Backup(io.Discard), ErrNotStarted)
}

func TestStartIsIdempotent(t *testing.T) {
	vault := newTestVault(t)
	require.NoError(t, vault.Start(context.Background()))
	require.NoError(t, vault.StoreResource("user", "QmIdem"))
}

func TestCloseIsIdempotent(t *testing.T) {
	vault := newTestVault(t)
	ctx := context.Background()
	require.NoError(t, vault.Close(ctx))
	require.NoError(t, vault.Close(ctx))

	require.ErrorIs(t, vault.StoreResource("user", "QmX"), ErrNotStarted)
}

func TestEndToEndThroughFacade(t *testing.T) {
	vault := newTestVault(t)
	owner := types.Identity("facade-owner")
	grantee := types.Identity("facade-grantee")

	require.NoError(t, vault.StoreResource(owner, "QmFacade"))
	require.NoError(t, vault.GrantWithKey(owner, "QmFacade", grantee, types.Envelope("env")))

	has, err := vault.HasAccess(owner, "QmFacade", grantee)
	require.NoError(t, err)
	assert.True(t, has)

	envelope, err := vault.EncryptedKey(owner, "QmFacade", grantee)
	require.NoError(t, err)
	assert.Equal(t, types.Envelope("env"), envelope)

	require.NoError(t, vault.Revoke(owner, "QmFacade", grantee))
	has, err = vault.HasAccess(owner, "QmFacade", grantee)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestErrorTaxonomyReexports(t *testing.T) {
	vault := newTestVault(t)

	require.ErrorIs(t, vault.DeleteResource("user", "QmMissing"), ErrNotFound)
	require.ErrorIs(t, vault.StoreResource("", "QmX"), ErrInvalidArgument)
	require.NoError(t, vault.StoreResource("user", "QmDup"))
	require.ErrorIs(t, vault.StoreResource("user", "QmDup"), ErrAlreadyExists)
	_, err := vault.EncryptedKey("user", "QmDup", "stranger")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSubscribeThroughFacade(t *testing.T) {
	vault := newTestVault(t)

	events, cancel, err := vault.Subscribe(4)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, vault.StoreResource("user", "QmEvt"))
	ev := <-events
	assert.Equal(t, types.ResourceStored{}.Kind(), ev.Kind())
}

func TestBackupProducesSnapshot(t *testing.T) {
	vault := newTestVault(t)
	require.NoError(t, vault.StoreResource("user", "QmBackup"))

	var buf bytes.Buffer
	require.NoError(t, vault.Backup(&buf))
	assert.NotZero(t, buf.Len())
	// xz stream magic.
	assert.Equal(t, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}, buf.Bytes()[:6])
}

func TestObjectsRoundtrip(t *testing.T) {
	vault := newTestVault(t)

	objects, err := vault.Objects()
	require.NoError(t, err)

	ctx := context.Background()
	id, err := objects.Put(ctx, []byte("payload"))
	require.NoError(t, err)
	got, err := objects.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}
