// Package identity manages the vault's principals: an Ed25519 signing
// keypair whose public key derives the ledger address, plus an X25519
// keypair used only for envelope encryption. The encryption public key is
// what gets published to the key directory; the private halves never leave
// the identity's own execution context.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/box"

	"github.com/cidvault/cidvault/pkg/types"
)

// KeyPair holds one identity's full key material.
type KeyPair struct {
	SigningKey     ed25519.PrivateKey
	EncryptionPub  *[32]byte
	EncryptionPriv *[32]byte
}

// Generate creates a fresh identity.
func Generate() (*KeyPair, error) {
	_, signingKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	encPub, encPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate encryption key: %w", err)
	}
	return &KeyPair{
		SigningKey:     signingKey,
		EncryptionPub:  encPub,
		EncryptionPriv: encPriv,
	}, nil
}

// AddressOf derives the ledger address from an Ed25519 public key.
func AddressOf(pub ed25519.PublicKey) types.Identity {
	digest := sha256.Sum256(pub)
	return types.Identity(base58.Encode(digest[:]))
}

// Address returns this identity's ledger address.
func (kp *KeyPair) Address() types.Identity {
	return AddressOf(kp.SigningKey.Public().(ed25519.PublicKey))
}

// DirectoryKey returns the public encryption key in the form published to
// the key directory: 32 raw X25519 bytes.
func (kp *KeyPair) DirectoryKey() types.PublicKey {
	return types.PublicKey(kp.EncryptionPub[:])
}

// Sign signs msg with the identity's signing key.
func (kp *KeyPair) Sign(msg []byte) []byte {
	return ed25519.Sign(kp.SigningKey, msg)
}

// Verify checks sig over msg against pub.
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	return len(pub) == ed25519.PublicKeySize && ed25519.Verify(pub, msg, sig)
}

// EncryptionKeyFromDirectory converts a directory record back into the
// 32-byte X25519 key the wrap primitives expect.
func EncryptionKeyFromDirectory(key types.PublicKey) (*[32]byte, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("directory key must be 32 bytes, got %d", len(key))
	}
	var out [32]byte
	copy(out[:], key)
	return &out, nil
}

// serialized is the keystore wire form of a KeyPair.
type serialized struct {
	SigningSeed    []byte `json:"signingSeed"`
	EncryptionPriv []byte `json:"encryptionPriv"`
}

// Marshal serializes the private key material for keystore storage.
func (kp *KeyPair) Marshal() ([]byte, error) {
	return json.Marshal(serialized{
		SigningSeed:    kp.SigningKey.Seed(),
		EncryptionPriv: kp.EncryptionPriv[:],
	})
}

// Unmarshal restores a KeyPair from its keystore form.
func Unmarshal(data []byte) (*KeyPair, error) {
	var s serialized
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode key material: %w", err)
	}
	if len(s.SigningSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing seed must be %d bytes, got %d", ed25519.SeedSize, len(s.SigningSeed))
	}
	if len(s.EncryptionPriv) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(s.EncryptionPriv))
	}

	kp := &KeyPair{
		SigningKey:     ed25519.NewKeyFromSeed(s.SigningSeed),
		EncryptionPriv: new([32]byte),
		EncryptionPub:  new([32]byte),
	}
	copy(kp.EncryptionPriv[:], s.EncryptionPriv)
	// Recompute the public half from the private scalar.
	pub, err := publicFromPrivate(kp.EncryptionPriv)
	if err != nil {
		return nil, err
	}
	kp.EncryptionPub = pub
	return kp, nil
}
