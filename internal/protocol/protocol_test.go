package protocol_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cidvault "github.com/cidvault/cidvault"
	"github.com/cidvault/cidvault/internal/identity"
	"github.com/cidvault/cidvault/internal/keywrap"
	"github.com/cidvault/cidvault/internal/objectstore"
	"github.com/cidvault/cidvault/internal/protocol"
	"github.com/cidvault/cidvault/internal/registry"
)

type fixture struct {
	vault   *cidvault.Vault
	objects objectstore.Store
	log     *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	vault, err := cidvault.New(cidvault.Config{InMemory: true, Logger: log})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, vault.Start(ctx))
	t.Cleanup(func() { _ = vault.Close(ctx) })

	objects, err := vault.Objects()
	require.NoError(t, err)
	return &fixture{vault: vault, objects: objects, log: log}
}

// newClient creates a fresh identity with a registered directory key.
func (f *fixture) newClient(t *testing.T) (*protocol.Client, *identity.KeyPair) {
	t.Helper()
	kp, err := identity.Generate()
	require.NoError(t, err)
	client := protocol.NewClient(f.vault, f.objects, kp, f.log)
	require.NoError(t, client.RegisterKey())
	return client, kp
}

func TestPublishFetchRoundtrip(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.newClient(t)
	ctx := context.Background()

	plaintext := []byte("the quick brown fox")
	cid, err := alice.Publish(ctx, plaintext)
	require.NoError(t, err)
	require.NotEmpty(t, cid)

	got, err := alice.Fetch(ctx, alice.Address(), cid)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	// The stored blob is ciphertext, not the plaintext.
	blob, err := f.objects.Get(ctx, cid)
	require.NoError(t, err)
	assert.NotContains(t, string(blob), string(plaintext))
}

func TestPublish_RequiresRegisteredKey(t *testing.T) {
	f := newFixture(t)
	kp, err := identity.Generate()
	require.NoError(t, err)
	client := protocol.NewClient(f.vault, f.objects, kp, f.log)

	_, err = client.Publish(context.Background(), []byte("x"))
	require.ErrorIs(t, err, protocol.ErrOwnKeyMissing)
}

func TestShareAndFetch(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.newClient(t)
	bob, _ := f.newClient(t)
	ctx := context.Background()

	plaintext := []byte("shared secret document")
	cid, err := alice.Publish(ctx, plaintext)
	require.NoError(t, err)

	// Bob cannot read before the share.
	_, err = bob.Fetch(ctx, alice.Address(), cid)
	require.ErrorIs(t, err, registry.ErrUnauthorized)

	require.NoError(t, alice.Share(ctx, cid, bob.Address()))

	got, err := bob.Fetch(ctx, alice.Address(), cid)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestShare_UnregisteredAccessor(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.newClient(t)
	ctx := context.Background()

	cid, err := alice.Publish(ctx, []byte("doc"))
	require.NoError(t, err)

	kp, err := identity.Generate()
	require.NoError(t, err)

	err = alice.Share(ctx, cid, kp.Address())
	require.ErrorIs(t, err, registry.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "accessor has not registered a key")
}

func TestShare_Twice(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.newClient(t)
	bob, _ := f.newClient(t)
	ctx := context.Background()

	cid, err := alice.Publish(ctx, []byte("doc"))
	require.NoError(t, err)

	require.NoError(t, alice.Share(ctx, cid, bob.Address()))
	err = alice.Share(ctx, cid, bob.Address())
	require.ErrorIs(t, err, registry.ErrAlreadyExists)
}

func TestRevokeBlocksFetch(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.newClient(t)
	bob, _ := f.newClient(t)
	ctx := context.Background()

	cid, err := alice.Publish(ctx, []byte("doc"))
	require.NoError(t, err)
	require.NoError(t, alice.Share(ctx, cid, bob.Address()))
	require.NoError(t, alice.Revoke(ctx, cid, bob.Address()))

	_, err = bob.Fetch(ctx, alice.Address(), cid)
	require.ErrorIs(t, err, registry.ErrUnauthorized)

	// Revoking again reports the grant as gone.
	require.ErrorIs(t, alice.Revoke(ctx, cid, bob.Address()), registry.ErrNotFound)
}

// Each grantee gets its own envelope; one grantee's envelope is useless to
// another identity.
func TestEnvelopesArePerRecipient(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.newClient(t)
	bob, _ := f.newClient(t)
	ctx := context.Background()

	cid, err := alice.Publish(ctx, []byte("doc"))
	require.NoError(t, err)
	require.NoError(t, alice.Share(ctx, cid, bob.Address()))

	bobEnvelope, err := f.vault.EncryptedKey(alice.Address(), cid, bob.Address())
	require.NoError(t, err)
	require.NotEmpty(t, bobEnvelope)

	mallory, err := identity.Generate()
	require.NoError(t, err)
	_, err = keywrap.Unwrap(bobEnvelope, mallory.EncryptionPub, mallory.EncryptionPriv)
	require.ErrorIs(t, err, keywrap.ErrUnwrapFailed)
}

// failStore wraps a Store and fails Put while recording Removes.
type failStore struct {
	objectstore.Store
	failPut bool
	removed []string
}

var errStoreDown = errors.New("object store unavailable")

func (s *failStore) Put(ctx context.Context, data []byte) (string, error) {
	if s.failPut {
		return "", errStoreDown
	}
	return s.Store.Put(ctx, data)
}

func (s *failStore) Remove(ctx context.Context, cid string) error {
	s.removed = append(s.removed, cid)
	return s.Store.Remove(ctx, cid)
}

func TestPublish_UploadFailure(t *testing.T) {
	f := newFixture(t)
	kp, err := identity.Generate()
	require.NoError(t, err)
	objects := &failStore{Store: f.objects, failPut: true}
	client := protocol.NewClient(f.vault, objects, kp, f.log)
	require.NoError(t, client.RegisterKey())

	_, err = client.Publish(context.Background(), []byte("doc"))
	require.ErrorIs(t, err, errStoreDown)

	// Nothing was registered and nothing needed cleanup.
	owned, err := f.vault.ListOwned(kp.Address())
	require.NoError(t, err)
	assert.Empty(t, owned)
	assert.Empty(t, objects.removed)
}

// replayStore always "uploads" the same fixed blob, so every Put yields the
// same cid. Removes are recorded but not forwarded.
type replayStore struct {
	data    []byte
	inner   objectstore.Store
	removed []string
}

func (s *replayStore) Put(ctx context.Context, _ []byte) (string, error) {
	return s.inner.Put(ctx, s.data)
}

func (s *replayStore) Get(ctx context.Context, cid string) ([]byte, error) {
	return s.inner.Get(ctx, cid)
}

func (s *replayStore) Remove(ctx context.Context, cid string) error {
	s.removed = append(s.removed, cid)
	return nil
}

// A registration conflict after a successful upload must unwind the upload.
func TestPublish_RegistrationConflictCompensates(t *testing.T) {
	f := newFixture(t)
	alice, aliceKeys := f.newClient(t)
	ctx := context.Background()

	cid, err := alice.Publish(ctx, []byte("doc"))
	require.NoError(t, err)

	blob, err := f.objects.Get(ctx, cid)
	require.NoError(t, err)

	// A second publish as the same identity whose upload resolves to the
	// already-registered cid: the ledger rejects the duplicate and the
	// client must remove its upload.
	objects := &replayStore{data: blob, inner: f.objects}
	replay := protocol.NewClient(f.vault, objects, aliceKeys, f.log)

	_, err = replay.Publish(ctx, []byte("doc"))
	require.ErrorIs(t, err, registry.ErrAlreadyExists)
	assert.Equal(t, []string{cid}, objects.removed)

	// The original publish is untouched.
	got, err := alice.Fetch(ctx, alice.Address(), cid)
	require.NoError(t, err)
	assert.Equal(t, []byte("doc"), got)
}
