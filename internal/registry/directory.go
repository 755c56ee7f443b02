package registry

import (
	"errors"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/cidvault/cidvault/internal/ledger"
	"github.com/cidvault/cidvault/pkg/types"
)

// KeyDirectory is the self-service mapping from identity to published
// public encryption key. One slot per identity, self-overwritable, never
// deleted. The directory imposes no format on the key; an empty key is a
// valid (if useless) value, and the protocol layer is responsible for
// treating it as "recipient has not onboarded".
type KeyDirectory struct {
	store    *ledger.Store
	notifier *Notifier
	log      *slog.Logger
}

// SetPublicKey overwrites the identity's slot unconditionally.
func (d *KeyDirectory) SetPublicKey(identity types.Identity, key types.PublicKey) error {
	if err := validateIdentity(identity); err != nil {
		return err
	}

	err := d.store.Update(func(txn *badger.Txn) error {
		return txn.Set(publicKeyKey(identity), key)
	})
	if err != nil {
		return err
	}

	d.log.Debug("public key set", "identity", identity, "len", len(key))
	d.notifier.publish(types.PublicKeySet{Identity: identity, Key: key})
	return nil
}

// PublicKey returns the stored key and whether the identity ever set one.
// An absent slot is distinct from a stored empty key.
func (d *KeyDirectory) PublicKey(identity types.Identity) (types.PublicKey, bool, error) {
	var (
		key types.PublicKey
		set bool
	)
	err := d.store.View(func(txn *badger.Txn) error {
		item, err := txn.Get(publicKeyKey(identity))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		key = raw
		set = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return key, set, nil
}
