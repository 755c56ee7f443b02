package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/cidvault/cidvault/internal/ledger"
	"github.com/cidvault/cidvault/pkg/types"
)

// ResourceRegistry tracks which content identifiers each identity owns.
// The true primary key is (owner, cid): the same cid string may be owned
// independently by any number of identities.
type ResourceRegistry struct {
	store    *ledger.Store
	notifier *Notifier
	log      *slog.Logger
	now      func() time.Time
}

// Store records a new (owner, cid) pair with the current ledger time.
func (r *ResourceRegistry) Store(owner types.Identity, cid string) error {
	if err := validateIdentity(owner); err != nil {
		return err
	}
	if err := validateCID(cid); err != nil {
		return err
	}

	rec := types.OwnershipRecord{Owner: owner, CID: cid, CreatedAt: r.now().UTC()}
	err := r.store.Update(func(txn *badger.Txn) error {
		key := resourceKey(owner, cid)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: CID already exists", ErrAlreadyExists)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(key, raw)
	})
	if err != nil {
		return err
	}

	r.log.Debug("resource stored", "owner", owner, "cid", cid)
	r.notifier.publish(types.ResourceStored{Owner: owner, CID: cid, Timestamp: rec.CreatedAt})
	return nil
}

// Delete removes an ownership record. Deletion does not touch the access
// registry: existing grants and the owner envelope slot survive untouched.
func (r *ResourceRegistry) Delete(owner types.Identity, cid string) error {
	if err := validateIdentity(owner); err != nil {
		return err
	}
	if err := validateCID(cid); err != nil {
		return err
	}

	err := r.store.Update(func(txn *badger.Txn) error {
		key := resourceKey(owner, cid)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: CID does not exist", ErrNotFound)
			}
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}

	r.log.Debug("resource deleted", "owner", owner, "cid", cid)
	r.notifier.publish(types.ResourceDeleted{Owner: owner, CID: cid})
	return nil
}

// Update atomically renames oldCID to newCID for the owner. The renamed
// record takes a fresh timestamp; no link to the old identifier is kept.
func (r *ResourceRegistry) Update(owner types.Identity, oldCID, newCID string) error {
	if err := validateIdentity(owner); err != nil {
		return err
	}
	if err := validateCID(oldCID); err != nil {
		return err
	}
	if err := validateCID(newCID); err != nil {
		return err
	}

	rec := types.OwnershipRecord{Owner: owner, CID: newCID, CreatedAt: r.now().UTC()}
	err := r.store.Update(func(txn *badger.Txn) error {
		oldKey := resourceKey(owner, oldCID)
		if _, err := txn.Get(oldKey); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: CID does not exist", ErrNotFound)
			}
			return err
		}
		newKey := resourceKey(owner, newCID)
		if _, err := txn.Get(newKey); err == nil {
			return fmt.Errorf("%w: CID already exists", ErrAlreadyExists)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Delete(oldKey); err != nil {
			return err
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(newKey, raw)
	})
	if err != nil {
		return err
	}

	r.log.Debug("resource updated", "owner", owner, "old", oldCID, "new", newCID)
	r.notifier.publish(types.ResourceUpdated{Owner: owner, OldCID: oldCID, NewCID: newCID, Timestamp: rec.CreatedAt})
	return nil
}

// ListOwned returns all live records for owner, sorted by cid.
func (r *ResourceRegistry) ListOwned(owner types.Identity) ([]types.OwnedResource, error) {
	items, err := r.store.ItemsWithPrefix(resourcePrefix(owner))
	if err != nil {
		return nil, err
	}

	owned := make([]types.OwnedResource, 0, len(items))
	for _, kv := range items {
		var rec types.OwnershipRecord
		if err := json.Unmarshal(kv[1], &rec); err != nil {
			return nil, fmt.Errorf("decode ownership record: %w", err)
		}
		owned = append(owned, types.OwnedResource{CID: rec.CID, CreatedAt: rec.CreatedAt})
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].CID < owned[j].CID })
	return owned, nil
}

// Count returns the number of live records for owner.
func (r *ResourceRegistry) Count(owner types.Identity) (int, error) {
	items, err := r.store.ItemsWithPrefix(resourcePrefix(owner))
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// resourceExists reports whether (owner, cid) is live, within the caller's txn.
func resourceExists(txn *badger.Txn, owner types.Identity, cid string) (bool, error) {
	_, err := txn.Get(resourceKey(owner, cid))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}
