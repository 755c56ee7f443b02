// Package keywrap implements the cryptographic primitives of the key-wrap
// protocol: symmetric content-key generation, the object cipher, and the
// asymmetric envelope wrap. The registries never import this package; all
// cryptographic meaning of an envelope lives here.
package keywrap

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"

	"github.com/cidvault/cidvault/pkg/types"
)

// ContentKeySize is the size of the symmetric content key (AES-256).
const ContentKeySize = 32

// nonceSize is the AES-GCM nonce length; the nonce is prepended to the
// ciphertext, so the on-store blob is nonce || sealed.
const nonceSize = 12

var (
	// ErrUnwrapFailed means the envelope could not be opened with the
	// given private key: wrong recipient or corrupted envelope.
	ErrUnwrapFailed = errors.New("cannot unwrap envelope with this key")
	// ErrDecryptFailed means the object ciphertext did not authenticate
	// under the given content key: wrong or stale key.
	ErrDecryptFailed = errors.New("cannot decrypt object with this key")
)

// GenerateContentKey returns a fresh random symmetric content key.
func GenerateContentKey() ([]byte, error) {
	key := make([]byte, ContentKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate content key: %w", err)
	}
	return key, nil
}

// EncryptObject seals plaintext under key with AES-256-GCM using a fresh
// nonce, and returns nonce || ciphertext.
func EncryptObject(plaintext, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptObject opens a blob produced by EncryptObject.
func DecryptObject(blob, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(blob) < nonceSize {
		return nil, ErrDecryptFailed
	}
	plaintext, err := aead.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != ContentKeySize {
		return nil, fmt.Errorf("content key must be %d bytes, got %d", ContentKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Wrap seals the content key for one recipient with an anonymous NaCl box
// (Curve25519, XSalsa20-Poly1305). Only the holder of the matching private
// key can open the resulting envelope.
func Wrap(contentKey []byte, recipientPub *[32]byte) (types.Envelope, error) {
	if len(contentKey) != ContentKeySize {
		return nil, fmt.Errorf("content key must be %d bytes, got %d", ContentKeySize, len(contentKey))
	}
	sealed, err := box.SealAnonymous(nil, contentKey, recipientPub, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("wrap content key: %w", err)
	}
	return types.Envelope(sealed), nil
}

// Unwrap opens an envelope with the recipient's keypair and returns the
// content key.
func Unwrap(envelope types.Envelope, pub, priv *[32]byte) ([]byte, error) {
	contentKey, ok := box.OpenAnonymous(nil, envelope, pub, priv)
	if !ok {
		return nil, ErrUnwrapFailed
	}
	if len(contentKey) != ContentKeySize {
		return nil, ErrUnwrapFailed
	}
	return contentKey, nil
}
