package identity

import (
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// publicFromPrivate derives the X25519 public key from a private scalar.
func publicFromPrivate(priv *[32]byte) (*[32]byte, error) {
	pubBytes, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive encryption public key: %w", err)
	}
	var pub [32]byte
	copy(pub[:], pubBytes)
	return &pub, nil
}
