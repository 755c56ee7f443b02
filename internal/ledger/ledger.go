// Package ledger provides the single authoritative transactional store that
// backs every registry. All mutations funnel through Update, which runs the
// invariant checks and the writes inside one serialized badger transaction,
// so there is no check-then-act window between independent callers.
package ledger

import (
	"fmt"
	"io"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
)

var log *logrus.Logger

// StoreConfig configures the ledger store. Only Paths[0] is used at the
// moment.
type StoreConfig struct {
	Paths         []string
	MinimumFreeGB int // refuse to open below this free-space floor
	Logger        *logrus.Logger
	InMemory      bool // for tests
}

// Store is a badger-backed serializing ledger.
type Store struct {
	config StoreConfig
	db     *badger.DB
}

// ErrKeyNotFound is returned by Get when a key is absent.
var ErrKeyNotFound = badger.ErrKeyNotFound

// NewStore opens the ledger at config.Paths[0].
func NewStore(config StoreConfig) (*Store, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log = config.Logger

	if err := config.check(); err != nil {
		return nil, fmt.Errorf("error checking config for ledger store: %w", err)
	}

	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(config.Paths[0], 0o700); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", config.Paths[0], err)
		}
		opts = badger.DefaultOptions(config.Paths[0])
	}
	opts.Logger = nil
	opts.SyncWrites = true // every committed mutation is durable and irrevocable

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	return &Store{
		config: config,
		db:     db,
	}, nil
}

// Update runs fn inside one atomic, totally ordered read-write transaction.
func (s *Store) Update(fn func(txn *badger.Txn) error) error {
	return s.db.Update(fn)
}

// View runs fn against the latest committed snapshot.
func (s *Store) View(fn func(txn *badger.Txn) error) error {
	return s.db.View(fn)
}

// Get reads a single key. Returns ErrKeyNotFound when absent.
func (s *Store) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// ItemsWithPrefix returns all key/value pairs under the given prefix, in
// badger's lexicographic key order.
func (s *Store) ItemsWithPrefix(prefix []byte) ([][2][]byte, error) {
	var items [][2][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			items = append(items, [2][]byte{k, v})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Backup streams a full snapshot of the ledger through an xz writer.
func (s *Store) Backup(w io.Writer) error {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create xz writer: %w", err)
	}
	if _, err := s.db.Backup(xw, 0); err != nil {
		return fmt.Errorf("backup ledger: %w", err)
	}
	return xw.Close()
}

// Restore loads an xz-compressed snapshot produced by Backup.
func (s *Store) Restore(r io.Reader) error {
	xr, err := xz.NewReader(r)
	if err != nil {
		return fmt.Errorf("create xz reader: %w", err)
	}
	if err := s.db.Load(xr, 16); err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}
	return nil
}

// Close syncs and closes the underlying store.
func (s *Store) Close() error {
	if !s.config.InMemory {
		if err := s.db.Sync(); err != nil {
			log.Errorf("error syncing ledger: %v", err)
		}
		if err := s.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
			log.Warnf("value log GC: %v", err)
		}
	}
	return s.db.Close()
}

// DB exposes the underlying badger handle for subsystems that share the
// ledger's storage, such as the local object store.
func (s *Store) DB() *badger.DB {
	return s.db
}
