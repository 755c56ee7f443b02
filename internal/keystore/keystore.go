// Package keystore persists private key material in the OS keyring, keyed
// by ledger address. Key material is never written to the ledger; the file
// backend is a fallback for headless machines.
package keystore

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/cidvault/cidvault/internal/identity"
	"github.com/cidvault/cidvault/pkg/types"
)

const serviceName = "cidvault"

// ErrNoIdentity is returned when the requested address is not stored.
var ErrNoIdentity = errors.New("identity not found in keystore")

type Keystore struct {
	ring keyring.Keyring
}

// Open opens the platform keyring. fileDir backs the encrypted-file
// fallback used when no native keyring is available.
func Open(fileDir string) (*Keystore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:      serviceName,
		FileDir:          fileDir,
		FilePasswordFunc: keyring.FixedStringPrompt(serviceName),
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return &Keystore{ring: ring}, nil
}

// Save stores a keypair under its own address.
func (k *Keystore) Save(kp *identity.KeyPair) error {
	data, err := kp.Marshal()
	if err != nil {
		return err
	}
	err = k.ring.Set(keyring.Item{
		Key:   string(kp.Address()),
		Label: serviceName + " identity",
		Data:  data,
	})
	if err != nil {
		return fmt.Errorf("store identity: %w", err)
	}
	return nil
}

// Load retrieves the keypair for the given address.
func (k *Keystore) Load(address types.Identity) (*identity.KeyPair, error) {
	item, err := k.ring.Get(string(address))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, ErrNoIdentity
		}
		return nil, fmt.Errorf("load identity: %w", err)
	}
	kp, err := identity.Unmarshal(item.Data)
	if err != nil {
		return nil, err
	}
	if kp.Address() != address {
		return nil, fmt.Errorf("keystore entry %s holds mismatched key material", address)
	}
	return kp, nil
}

// List returns the addresses of all stored identities.
func (k *Keystore) List() ([]types.Identity, error) {
	keys, err := k.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	addrs := make([]types.Identity, 0, len(keys))
	for _, key := range keys {
		addrs = append(addrs, types.Identity(key))
	}
	return addrs, nil
}
