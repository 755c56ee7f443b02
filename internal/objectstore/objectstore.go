// Package objectstore stores and serves encrypted object bytes. The
// protocol layer treats implementations as fallible, retryable black
// boxes; the only contract is that Put returns the content identifier the
// registries will key on, with byte-exact string equality.
package objectstore

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by Get and Remove for unknown identifiers.
var ErrObjectNotFound = errors.New("object not found")

// Store is the external collaborator boundary of the key-wrap protocol.
type Store interface {
	// Put uploads a blob and returns its content identifier.
	Put(ctx context.Context, data []byte) (string, error)
	// Get downloads the blob for a content identifier.
	Get(ctx context.Context, cid string) ([]byte, error)
	// Remove deletes a blob; used for compensating cleanup after a
	// failed publish.
	Remove(ctx context.Context, cid string) error
}
