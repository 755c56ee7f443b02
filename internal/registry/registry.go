// Package registry implements the three ledger-backed registries of the
// vault: resource ownership, access control, and the public-key directory.
// Every invariant is checked inside the same serialized transaction that
// performs the mutation; the ledger's ordering is the only mutual exclusion.
package registry

import (
	"log/slog"
	"time"

	"github.com/cidvault/cidvault/internal/ledger"
	"github.com/cidvault/cidvault/pkg/types"
)

// Registries bundles the three registries over one ledger store and one
// notification fan-out.
type Registries struct {
	Resources *ResourceRegistry
	Access    *AccessRegistry
	Directory *KeyDirectory

	notifier *Notifier
}

// New wires the registries over the given ledger store.
func New(store *ledger.Store, log *slog.Logger) *Registries {
	if log == nil {
		log = slog.Default()
	}
	n := NewNotifier()
	return &Registries{
		Resources: &ResourceRegistry{store: store, notifier: n, log: log, now: time.Now},
		Access:    &AccessRegistry{store: store, notifier: n, log: log, now: time.Now},
		Directory: &KeyDirectory{store: store, notifier: n, log: log},
		notifier:  n,
	}
}

// Subscribe registers a notification subscriber. See Notifier.Subscribe.
func (r *Registries) Subscribe(buffer int) (<-chan types.Event, func()) {
	return r.notifier.Subscribe(buffer)
}
