// Package cidvault is the authoritative ledger core for encrypted-object
// sharing: a resource registry tracking ownership of content identifiers,
// an access-control registry distributing wrapped content keys, and a
// public-key directory addressing those envelopes — all backed by one
// serializing transactional store.
package cidvault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cidvault/cidvault/internal/ledger"
	"github.com/cidvault/cidvault/internal/objectstore"
	"github.com/cidvault/cidvault/internal/registry"
	"github.com/cidvault/cidvault/pkg/types"
)

// Vault is the main handle. It owns the ledger store, the three
// registries, and the local object store, and is the single serialized
// entry point for every mutation.
type Vault struct {
	log    *slog.Logger
	config Config

	storeMu sync.RWMutex
	store   *ledger.Store
	regs    *registry.Registries
	objects *objectstore.CAS

	started   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
}

var (
	ErrNotStarted = errors.New("cidvault: vault not started")
	ErrClosed     = errors.New("cidvault: vault closed")
)

// Failure taxonomy of the registries, re-exported so callers can branch
// with errors.Is without importing internal packages.
var (
	ErrNotFound        = registry.ErrNotFound
	ErrAlreadyExists   = registry.ErrAlreadyExists
	ErrInvalidArgument = registry.ErrInvalidArgument
	ErrUnauthorized    = registry.ErrUnauthorized
)

// New constructs a vault handle. New does not perform I/O; call Start.
func New(conf Config) (*Vault, error) {
	if len(conf.Paths) == 0 && !conf.InMemory {
		return nil, fmt.Errorf("at least one path must be provided in config")
	}
	if conf.Logger == nil {
		conf.Logger = defaultLogger()
	}
	if conf.LedgerLogger == nil {
		conf.LedgerLogger = defaultLedgerLogger()
	}
	return &Vault{
		log:    conf.Logger,
		config: conf,
	}, nil
}

// Start opens the ledger and wires the registries. Safe to call multiple
// times; only the first call has effect.
func (v *Vault) Start(ctx context.Context) error {
	var startErr error
	v.startOnce.Do(func() {
		if err := ctx.Err(); err != nil {
			startErr = err
			return
		}

		store, err := ledger.NewStore(ledger.StoreConfig{
			Paths:         v.config.Paths,
			MinimumFreeGB: v.config.MinimumFreeGB,
			Logger:        v.config.LedgerLogger,
			InMemory:      v.config.InMemory,
		})
		if err != nil {
			startErr = fmt.Errorf("open ledger: %w", err)
			return
		}

		v.storeMu.Lock()
		v.store = store
		v.regs = registry.New(store, v.log)
		v.objects = objectstore.NewCAS(store.DB())
		v.storeMu.Unlock()

		v.started.Store(true)
		v.log.Info("vault started", "paths", v.config.Paths)
	})
	return startErr
}

// Run starts the vault, blocks until ctx is canceled, then performs a
// bounded graceful shutdown. A convenience for services.
func (v *Vault) Run(ctx context.Context) error {
	if err := v.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return v.Close(shutdownCtx)
}

// Close releases the ledger. Idempotent.
func (v *Vault) Close(ctx context.Context) error {
	var closeErr error
	v.closeOnce.Do(func() {
		v.storeMu.Lock()
		store := v.store
		v.store = nil
		v.regs = nil
		v.objects = nil
		v.storeMu.Unlock()
		v.started.Store(false)

		if store != nil {
			if err := store.Close(); err != nil {
				closeErr = fmt.Errorf("close ledger: %w", err)
			}
		}
		v.log.Info("vault closed")
	})
	return closeErr
}

func (v *Vault) registries() (*registry.Registries, error) {
	if !v.started.Load() {
		return nil, ErrNotStarted
	}
	v.storeMu.RLock()
	regs := v.regs
	v.storeMu.RUnlock()
	if regs == nil {
		return nil, ErrClosed
	}
	return regs, nil
}

// Objects returns the vault's local content-addressed object store.
func (v *Vault) Objects() (objectstore.Store, error) {
	if !v.started.Load() {
		return nil, ErrNotStarted
	}
	v.storeMu.RLock()
	objects := v.objects
	v.storeMu.RUnlock()
	if objects == nil {
		return nil, ErrClosed
	}
	return objects, nil
}

// Subscribe registers a notification subscriber for committed mutations.
func (v *Vault) Subscribe(buffer int) (<-chan types.Event, func(), error) {
	regs, err := v.registries()
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := regs.Subscribe(buffer)
	return ch, cancel, nil
}

// Backup streams an xz-compressed snapshot of the ledger to w.
func (v *Vault) Backup(w io.Writer) error {
	if !v.started.Load() {
		return ErrNotStarted
	}
	v.storeMu.RLock()
	store := v.store
	v.storeMu.RUnlock()
	if store == nil {
		return ErrClosed
	}
	return store.Backup(w)
}
