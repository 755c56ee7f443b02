package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/cidvault/cidvault/internal/ledger"
	"github.com/cidvault/cidvault/pkg/types"
)

// AccessRegistry tracks per-(owner, cid) grants, each carrying an opaque
// encrypted key envelope, plus the owner's own envelope in a separate slot.
// The owner argument of every mutating call is the authenticated caller;
// only the resource's owner can create or destroy its grants.
type AccessRegistry struct {
	store    *ledger.Store
	notifier *Notifier
	log      *slog.Logger
	now      func() time.Time
}

// Grant authorizes grantee to read the resource's envelope, without
// attaching one yet.
func (a *AccessRegistry) Grant(owner types.Identity, cid string, grantee types.Identity) error {
	return a.grant(owner, cid, grantee, nil)
}

// GrantWithKey authorizes grantee and stores its envelope in one
// transaction. The envelope must be non-empty.
func (a *AccessRegistry) GrantWithKey(owner types.Identity, cid string, grantee types.Identity, envelope types.Envelope) error {
	if len(envelope) == 0 {
		return fmt.Errorf("%w: empty encrypted key", ErrInvalidArgument)
	}
	return a.grant(owner, cid, grantee, envelope)
}

func (a *AccessRegistry) grant(owner types.Identity, cid string, grantee types.Identity, envelope types.Envelope) error {
	if err := validateIdentity(owner); err != nil {
		return err
	}
	if err := validateCID(cid); err != nil {
		return err
	}
	if grantee.IsZero() || grantee == owner {
		return fmt.Errorf("%w: invalid accessor", ErrInvalidArgument)
	}
	if err := validateIdentity(grantee); err != nil {
		return err
	}

	rec := types.Grant{Owner: owner, CID: cid, Grantee: grantee, Envelope: envelope, GrantedAt: a.now().UTC()}
	err := a.store.Update(func(txn *badger.Txn) error {
		ok, err := resourceExists(txn, owner, cid)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: CID does not exist for owner", ErrNotFound)
		}

		gKey := grantKey(owner, cid, grantee)
		if _, err := txn.Get(gKey); err == nil {
			return fmt.Errorf("%w: accessor already in list", ErrAlreadyExists)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := txn.Set(gKey, raw); err != nil {
			return err
		}

		shared, err := json.Marshal(types.SharedResource{Owner: owner, CID: cid})
		if err != nil {
			return err
		}
		return txn.Set(sharedKey(grantee, owner, cid), shared)
	})
	if err != nil {
		return err
	}

	a.log.Debug("access granted", "owner", owner, "cid", cid, "grantee", grantee, "keyed", len(envelope) > 0)
	a.notifier.publish(types.AccessGranted{Owner: owner, CID: cid, Grantee: grantee})
	if len(envelope) > 0 {
		a.notifier.publish(types.EncryptedKeySet{Owner: owner, CID: cid, Grantee: grantee})
	}
	return nil
}

// Revoke removes an active grant together with its envelope.
func (a *AccessRegistry) Revoke(owner types.Identity, cid string, grantee types.Identity) error {
	if err := validateIdentity(owner); err != nil {
		return err
	}
	if err := validateCID(cid); err != nil {
		return err
	}

	err := a.store.Update(func(txn *badger.Txn) error {
		gKey := grantKey(owner, cid, grantee)
		if _, err := txn.Get(gKey); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: access not granted", ErrNotFound)
			}
			return err
		}
		if err := txn.Delete(gKey); err != nil {
			return err
		}
		return txn.Delete(sharedKey(grantee, owner, cid))
	})
	if err != nil {
		return err
	}

	a.log.Debug("access revoked", "owner", owner, "cid", cid, "grantee", grantee)
	a.notifier.publish(types.AccessRevoked{Owner: owner, CID: cid, Grantee: grantee})
	return nil
}

// SetEncryptedKey replaces the envelope of an active grant in place. The
// grant itself is unaffected; overwriting is idempotent.
func (a *AccessRegistry) SetEncryptedKey(owner types.Identity, cid string, grantee types.Identity, envelope types.Envelope) error {
	if err := validateIdentity(owner); err != nil {
		return err
	}
	if err := validateCID(cid); err != nil {
		return err
	}
	if len(envelope) == 0 {
		return fmt.Errorf("%w: empty encrypted key", ErrInvalidArgument)
	}

	err := a.store.Update(func(txn *badger.Txn) error {
		gKey := grantKey(owner, cid, grantee)
		item, err := txn.Get(gKey)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: no access granted", ErrUnauthorized)
			}
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		var rec types.Grant
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode grant record: %w", err)
		}
		rec.Envelope = envelope
		updated, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(gKey, updated)
	})
	if err != nil {
		return err
	}

	a.notifier.publish(types.EncryptedKeySet{Owner: owner, CID: cid, Grantee: grantee})
	return nil
}

// SetOwnerEncryptedKey writes or overwrites the owner-scoped envelope slot.
// The slot has no grantee dimension and is never enumerated among grantees.
func (a *AccessRegistry) SetOwnerEncryptedKey(owner types.Identity, cid string, envelope types.Envelope) error {
	if err := validateIdentity(owner); err != nil {
		return err
	}
	if err := validateCID(cid); err != nil {
		return err
	}
	if len(envelope) == 0 {
		return fmt.Errorf("%w: empty encrypted key", ErrInvalidArgument)
	}

	err := a.store.Update(func(txn *badger.Txn) error {
		ok, err := resourceExists(txn, owner, cid)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: CID does not exist", ErrNotFound)
		}
		return txn.Set(ownerKeySlot(owner, cid), envelope)
	})
	if err != nil {
		return err
	}

	a.notifier.publish(types.EncryptedKeySet{Owner: owner, CID: cid, Grantee: owner})
	return nil
}

// HasAccess reports whether identity may read the resource's envelope.
// The owner always has access; for everyone else an active grant is
// required. Pure read, never fails on authorization grounds.
func (a *AccessRegistry) HasAccess(owner types.Identity, cid string, identity types.Identity) (bool, error) {
	var has bool
	err := a.store.View(func(txn *badger.Txn) error {
		var err error
		has, err = hasAccess(txn, owner, cid, identity)
		return err
	})
	return has, err
}

// hasAccess is the single access predicate consulted by every read path.
func hasAccess(txn *badger.Txn, owner types.Identity, cid string, identity types.Identity) (bool, error) {
	if identity.IsZero() {
		return false, nil
	}
	if identity == owner {
		return true, nil
	}
	_, err := txn.Get(grantKey(owner, cid, identity))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

// EncryptedKey returns the envelope the caller is entitled to. The owner
// reads its own slot and never fails, even when the slot was never set —
// an empty result means "key not yet set". Any other caller must hold an
// active grant; without one the call fails rather than returning empty,
// so "no permission" is distinguishable from "no key".
func (a *AccessRegistry) EncryptedKey(owner types.Identity, cid string, caller types.Identity) (types.Envelope, error) {
	if err := validateCID(cid); err != nil {
		return nil, err
	}

	var envelope types.Envelope
	err := a.store.View(func(txn *badger.Txn) error {
		if caller == owner {
			item, err := txn.Get(ownerKeySlot(owner, cid))
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
			envelope = raw
			return nil
		}

		item, err := txn.Get(grantKey(owner, cid, caller))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: not authorized", ErrUnauthorized)
			}
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		var rec types.Grant
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode grant record: %w", err)
		}
		envelope = rec.Envelope
		return nil
	})
	if err != nil {
		return nil, err
	}
	return envelope, nil
}

// ListAccessors returns all current grantees of (owner, cid). The owner
// itself never appears.
func (a *AccessRegistry) ListAccessors(owner types.Identity, cid string) ([]types.Identity, error) {
	items, err := a.store.ItemsWithPrefix(grantPrefix(owner, cid))
	if err != nil {
		return nil, err
	}

	accessors := make([]types.Identity, 0, len(items))
	for _, kv := range items {
		var rec types.Grant
		if err := json.Unmarshal(kv[1], &rec); err != nil {
			return nil, fmt.Errorf("decode grant record: %w", err)
		}
		accessors = append(accessors, rec.Grantee)
	}
	return accessors, nil
}

// ListAccessibleResources returns every resource currently shared with
// identity. Resources identity owns itself are not included.
func (a *AccessRegistry) ListAccessibleResources(identity types.Identity) ([]types.SharedResource, error) {
	items, err := a.store.ItemsWithPrefix(sharedPrefix(identity))
	if err != nil {
		return nil, err
	}

	shared := make([]types.SharedResource, 0, len(items))
	for _, kv := range items {
		var rec types.SharedResource
		if err := json.Unmarshal(kv[1], &rec); err != nil {
			return nil, fmt.Errorf("decode shared-resource record: %w", err)
		}
		shared = append(shared, rec)
	}
	return shared, nil
}
