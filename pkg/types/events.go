package types

import "time"

// Event is a notification emitted after a ledger mutation commits.
type Event interface {
	// Kind returns a stable name for the notification type.
	Kind() string
}

type ResourceStored struct {
	Owner     Identity
	CID       string
	Timestamp time.Time
}

func (ResourceStored) Kind() string { return "ResourceStored" }

type ResourceDeleted struct {
	Owner Identity
	CID   string
}

func (ResourceDeleted) Kind() string { return "ResourceDeleted" }

type ResourceUpdated struct {
	Owner     Identity
	OldCID    string
	NewCID    string
	Timestamp time.Time
}

func (ResourceUpdated) Kind() string { return "ResourceUpdated" }

type AccessGranted struct {
	Owner   Identity
	CID     string
	Grantee Identity
}

func (AccessGranted) Kind() string { return "AccessGranted" }

type AccessRevoked struct {
	Owner   Identity
	CID     string
	Grantee Identity
}

func (AccessRevoked) Kind() string { return "AccessRevoked" }

// EncryptedKeySet is emitted for grantee envelopes and for the owner slot;
// in the owner case Grantee equals Owner.
type EncryptedKeySet struct {
	Owner   Identity
	CID     string
	Grantee Identity
}

func (EncryptedKeySet) Kind() string { return "EncryptedKeySet" }

type PublicKeySet struct {
	Identity Identity
	Key      PublicKey
}

func (PublicKeySet) Kind() string { return "PublicKeySet" }
