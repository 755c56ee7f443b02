// Package types holds the shared data model of the vault: identities,
// ownership records, grants, and the notifications emitted by the ledger.
package types

import "time"

// Identity is an opaque principal address. The zero value is the null
// identity and is never a valid owner, grantee, or directory entry.
type Identity string

// NullIdentity is the zero identity.
const NullIdentity Identity = ""

func (i Identity) IsZero() bool {
	return i == NullIdentity
}

func (i Identity) String() string {
	return string(i)
}

// Envelope is an opaque ciphertext blob carrying a wrapped content key.
// The registries never interpret it; all cryptographic meaning lives in
// the protocol layer.
type Envelope []byte

// PublicKey is an identity's published encryption key. Opaque at the
// directory level; the protocol layer expects a 32-byte X25519 key.
type PublicKey []byte

// OwnershipRecord is one live (owner, cid) pair in the resource registry.
type OwnershipRecord struct {
	Owner     Identity  `json:"owner"`
	CID       string    `json:"cid"`
	CreatedAt time.Time `json:"createdAt"`
}

// OwnedResource is one entry of a ListOwned result.
type OwnedResource struct {
	CID       string    `json:"cid"`
	CreatedAt time.Time `json:"createdAt"`
}

// Grant is one active access grant. Envelope may be empty when access was
// granted without a key and no key has been set since.
type Grant struct {
	Owner     Identity  `json:"owner"`
	CID       string    `json:"cid"`
	Grantee   Identity  `json:"grantee"`
	Envelope  Envelope  `json:"envelope,omitempty"`
	GrantedAt time.Time `json:"grantedAt"`
}

// SharedResource is one entry of a ListAccessibleResources result: a
// resource some other identity shared with the caller.
type SharedResource struct {
	Owner Identity `json:"owner"`
	CID   string   `json:"cid"`
}
