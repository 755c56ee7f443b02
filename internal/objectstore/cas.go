package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v4"
	chunker "github.com/ipfs/boxo/chunker"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

const (
	casChunkPrefix    = "obj/c/"
	casManifestPrefix = "obj/m/"
)

// CAS is a local content-addressed store sharing the ledger's badger
// instance. Blobs are split with a buzhash chunker and deduplicated by
// chunk digest; the returned identifier is a CIDv1 (raw codec, sha2-256)
// over the whole blob.
type CAS struct {
	db *badger.DB
}

func NewCAS(db *badger.DB) *CAS {
	return &CAS{db: db}
}

type casManifest struct {
	Size   int      `json:"size"`
	Chunks [][]byte `json:"chunks"`
}

func (c *CAS) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id, err := blobCID(data)
	if err != nil {
		return "", err
	}

	chunks, err := splitChunks(data)
	if err != nil {
		return "", fmt.Errorf("chunk blob: %w", err)
	}

	manifest := casManifest{Size: len(data)}
	err = c.db.Update(func(txn *badger.Txn) error {
		for _, chunk := range chunks {
			digest, err := chunkDigest(chunk)
			if err != nil {
				return err
			}
			manifest.Chunks = append(manifest.Chunks, digest)

			key := append([]byte(casChunkPrefix), digest...)
			if _, err := txn.Get(key); err == nil {
				continue // dedup: chunk already present
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Set(key, chunk); err != nil {
				return err
			}
		}

		raw, err := json.Marshal(manifest)
		if err != nil {
			return err
		}
		return txn.Set([]byte(casManifestPrefix+id), raw)
	})
	if err != nil {
		return "", fmt.Errorf("store blob: %w", err)
	}
	return id, nil
}

func (c *CAS) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var blob []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(casManifestPrefix + id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrObjectNotFound
			}
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		var manifest casManifest
		if err := json.Unmarshal(raw, &manifest); err != nil {
			return fmt.Errorf("decode manifest: %w", err)
		}

		blob = make([]byte, 0, manifest.Size)
		for _, digest := range manifest.Chunks {
			key := append([]byte(casChunkPrefix), digest...)
			chunkItem, err := txn.Get(key)
			if err != nil {
				return fmt.Errorf("missing chunk %x: %w", digest, err)
			}
			chunk, err := chunkItem.ValueCopy(nil)
			if err != nil {
				return err
			}
			blob = append(blob, chunk...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// Remove drops the blob's manifest. Chunks are content-addressed and may
// be shared with other blobs, so they are left in place.
func (c *CAS) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.db.Update(func(txn *badger.Txn) error {
		key := []byte(casManifestPrefix + id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrObjectNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
}

// blobCID computes the CIDv1 (raw, sha2-256) of the whole blob.
func blobCID(data []byte) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("hash blob: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}

func chunkDigest(chunk []byte) ([]byte, error) {
	mh, err := multihash.Sum(chunk, multihash.SHA2_256, -1)
	if err != nil {
		return nil, fmt.Errorf("hash chunk: %w", err)
	}
	return mh, nil
}

func splitChunks(data []byte) ([][]byte, error) {
	bz := chunker.NewBuzhash(bytes.NewReader(data))

	var chunks [][]byte
	for {
		chunk, err := bz.NextBytes()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

var _ Store = (*CAS)(nil)
