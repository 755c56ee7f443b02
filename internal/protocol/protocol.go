// Package protocol implements the client-side key-wrap orchestration that
// binds the three registries into an end-to-end confidentiality flow:
// publish an encrypted object, share it by re-wrapping the content key,
// fetch and decrypt it, and revoke access. No step ever persists or
// transmits an unwrapped content key; the caller's private keys stay in
// this process.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cidvault/cidvault/internal/identity"
	"github.com/cidvault/cidvault/internal/keywrap"
	"github.com/cidvault/cidvault/internal/objectstore"
	"github.com/cidvault/cidvault/internal/registry"
	"github.com/cidvault/cidvault/pkg/types"
)

// Ledger is the slice of the vault's registry surface the protocol needs.
type Ledger interface {
	StoreResource(owner types.Identity, cid string) error
	DeleteResource(owner types.Identity, cid string) error
	SetOwnerEncryptedKey(owner types.Identity, cid string, envelope types.Envelope) error
	GrantWithKey(owner types.Identity, cid string, grantee types.Identity, envelope types.Envelope) error
	Revoke(owner types.Identity, cid string, grantee types.Identity) error
	EncryptedKey(owner types.Identity, cid string, caller types.Identity) (types.Envelope, error)
	ListAccessors(owner types.Identity, cid string) ([]types.Identity, error)
	SetPublicKey(id types.Identity, key types.PublicKey) error
	PublicKey(id types.Identity) (types.PublicKey, bool, error)
}

var (
	// ErrOwnKeyMissing means the acting identity has not published its own
	// encryption key to the directory yet.
	ErrOwnKeyMissing = errors.New("own public key is not registered in the directory")
	// ErrOwnerKeyUnset means the resource has no owner envelope to unwrap.
	ErrOwnerKeyUnset = errors.New("no owner encrypted key set for this resource")
	// ErrNoEnvelope means the ledger returned an empty envelope for a
	// caller that is authorized but has no key recorded.
	ErrNoEnvelope = errors.New("no encrypted key available for this resource")
)

// Client performs the protocol on behalf of one identity.
type Client struct {
	ledger  Ledger
	objects objectstore.Store
	keys    *identity.KeyPair
	log     *slog.Logger
}

func NewClient(ledger Ledger, objects objectstore.Store, keys *identity.KeyPair, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{ledger: ledger, objects: objects, keys: keys, log: log}
}

// Address returns the ledger identity this client acts as.
func (c *Client) Address() types.Identity {
	return c.keys.Address()
}

// Publish encrypts plaintext under a fresh content key, uploads the
// ciphertext, registers the resource, and records the owner's envelope.
// A failure after the upload removes the uploaded object; a failure after
// registration additionally deletes the ledger record. Once all three
// steps commit the publish is durable.
func (c *Client) Publish(ctx context.Context, plaintext []byte) (string, error) {
	owner := c.keys.Address()

	ownPub, err := c.directoryKey(owner)
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}

	contentKey, err := keywrap.GenerateContentKey()
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	defer zero(contentKey)

	blob, err := keywrap.EncryptObject(plaintext, contentKey)
	if err != nil {
		return "", fmt.Errorf("publish: encrypt object: %w", err)
	}

	cid, err := c.objects.Put(ctx, blob)
	if err != nil {
		return "", fmt.Errorf("publish: upload object: %w", err)
	}

	if err := c.ledger.StoreResource(owner, cid); err != nil {
		c.compensateUpload(ctx, cid)
		return "", fmt.Errorf("publish: register resource: %w", err)
	}

	envelope, err := keywrap.Wrap(contentKey, ownPub)
	if err != nil {
		c.compensateRegistration(ctx, owner, cid)
		return "", fmt.Errorf("publish: wrap content key: %w", err)
	}
	if err := c.ledger.SetOwnerEncryptedKey(owner, cid, envelope); err != nil {
		c.compensateRegistration(ctx, owner, cid)
		return "", fmt.Errorf("publish: store owner envelope: %w", err)
	}

	c.log.Info("object published", "cid", cid, "owner", owner)
	return cid, nil
}

// Share re-wraps the resource's content key for accessor and grants it
// access. The accessor must have registered a public key; the content key
// is recovered from the owner's own envelope and never leaves this call.
func (c *Client) Share(ctx context.Context, cid string, accessor types.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	owner := c.keys.Address()

	ownEnvelope, err := c.ledger.EncryptedKey(owner, cid, owner)
	if err != nil {
		return fmt.Errorf("share: %w", err)
	}
	if len(ownEnvelope) == 0 {
		return fmt.Errorf("share: %w", ErrOwnerKeyUnset)
	}

	contentKey, err := keywrap.Unwrap(ownEnvelope, c.keys.EncryptionPub, c.keys.EncryptionPriv)
	if err != nil {
		return fmt.Errorf("share: %w", err)
	}
	defer zero(contentKey)

	accessorPub, err := c.directoryKey(accessor)
	if err != nil {
		return fmt.Errorf("share: %w: accessor has not registered a key", registry.ErrInvalidArgument)
	}

	// Pre-check for a clean error before relying on the ledger's
	// duplicate-grant rejection.
	accessors, err := c.ledger.ListAccessors(owner, cid)
	if err != nil {
		return fmt.Errorf("share: %w", err)
	}
	for _, existing := range accessors {
		if existing == accessor {
			return fmt.Errorf("share: %w: accessor already in list", registry.ErrAlreadyExists)
		}
	}

	envelope, err := keywrap.Wrap(contentKey, accessorPub)
	if err != nil {
		return fmt.Errorf("share: wrap content key: %w", err)
	}
	if err := c.ledger.GrantWithKey(owner, cid, accessor, envelope); err != nil {
		return fmt.Errorf("share: %w", err)
	}

	c.log.Info("access shared", "cid", cid, "owner", owner, "accessor", accessor)
	return nil
}

// Fetch retrieves the caller's envelope, unwraps the content key, and
// downloads and decrypts the object.
func (c *Client) Fetch(ctx context.Context, owner types.Identity, cid string) ([]byte, error) {
	caller := c.keys.Address()

	envelope, err := c.ledger.EncryptedKey(owner, cid, caller)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if len(envelope) == 0 {
		return nil, fmt.Errorf("fetch: %w", ErrNoEnvelope)
	}

	contentKey, err := keywrap.Unwrap(envelope, c.keys.EncryptionPub, c.keys.EncryptionPriv)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer zero(contentKey)

	blob, err := c.objects.Get(ctx, cid)
	if err != nil {
		return nil, fmt.Errorf("fetch: download object: %w", err)
	}

	plaintext, err := keywrap.DecryptObject(blob, contentKey)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return plaintext, nil
}

// Revoke removes the accessor's grant and envelope. The content key is
// not rotated and the object is not re-encrypted: an accessor that cached
// the key before revocation can still decrypt previously fetched
// ciphertext. That is the documented limitation of envelope revocation.
func (c *Client) Revoke(ctx context.Context, cid string, accessor types.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	owner := c.keys.Address()
	if err := c.ledger.Revoke(owner, cid, accessor); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	c.log.Info("access revoked", "cid", cid, "owner", owner, "accessor", accessor)
	return nil
}

// RegisterKey publishes the identity's encryption key to the directory.
func (c *Client) RegisterKey() error {
	return c.ledger.SetPublicKey(c.keys.Address(), c.keys.DirectoryKey())
}

func (c *Client) directoryKey(id types.Identity) (*[32]byte, error) {
	key, ok, err := c.ledger.PublicKey(id)
	if err != nil {
		return nil, err
	}
	if !ok || len(key) == 0 {
		if id == c.keys.Address() {
			return nil, ErrOwnKeyMissing
		}
		return nil, fmt.Errorf("no public key registered for %s", id)
	}
	return identity.EncryptionKeyFromDirectory(key)
}

func (c *Client) compensateUpload(ctx context.Context, cid string) {
	if err := c.objects.Remove(ctx, cid); err != nil {
		c.log.Warn("cleanup: failed to remove uploaded object", "cid", cid, "error", err)
	}
}

func (c *Client) compensateRegistration(ctx context.Context, owner types.Identity, cid string) {
	if err := c.ledger.DeleteResource(owner, cid); err != nil {
		c.log.Warn("cleanup: failed to delete ledger record", "cid", cid, "error", err)
	}
	c.compensateUpload(ctx, cid)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
