package registry

import (
	"bytes"
	"fmt"

	"github.com/cidvault/cidvault/pkg/types"
)

// Ledger keyspace. Every registry lives under its own single-byte prefix;
// variable segments are joined with '/', which is rejected in identifiers.
//
//	r/<owner>/<cid>            ownership record (JSON)
//	a/<owner>/<cid>/<grantee>  grant record (JSON)
//	s/<grantee>/<owner>/<cid>  reverse index for ListAccessibleResources
//	o/<owner>/<cid>            owner-scoped envelope slot (raw bytes)
//	p/<identity>               published public key (raw bytes)
const (
	prefixResource   = "r/"
	prefixGrant      = "a/"
	prefixShared     = "s/"
	prefixOwnerKey   = "o/"
	prefixPublicKey  = "p/"
	segmentSeparator = "/"
)

func resourceKey(owner types.Identity, cid string) []byte {
	return []byte(prefixResource + string(owner) + segmentSeparator + cid)
}

func resourcePrefix(owner types.Identity) []byte {
	return []byte(prefixResource + string(owner) + segmentSeparator)
}

func grantKey(owner types.Identity, cid string, grantee types.Identity) []byte {
	return []byte(prefixGrant + string(owner) + segmentSeparator + cid + segmentSeparator + string(grantee))
}

func grantPrefix(owner types.Identity, cid string) []byte {
	return []byte(prefixGrant + string(owner) + segmentSeparator + cid + segmentSeparator)
}

func sharedKey(grantee, owner types.Identity, cid string) []byte {
	return []byte(prefixShared + string(grantee) + segmentSeparator + string(owner) + segmentSeparator + cid)
}

func sharedPrefix(grantee types.Identity) []byte {
	return []byte(prefixShared + string(grantee) + segmentSeparator)
}

func ownerKeySlot(owner types.Identity, cid string) []byte {
	return []byte(prefixOwnerKey + string(owner) + segmentSeparator + cid)
}

func publicKeyKey(identity types.Identity) []byte {
	return []byte(prefixPublicKey + string(identity))
}

// validateCID enforces the keyspace constraints on content identifiers.
// Equality stays byte-exact; only the empty string and the key separator
// are excluded.
func validateCID(cid string) error {
	if cid == "" {
		return fmt.Errorf("%w: empty CID", ErrInvalidArgument)
	}
	if bytes.ContainsAny([]byte(cid), segmentSeparator) {
		return fmt.Errorf("%w: CID must not contain '/'", ErrInvalidArgument)
	}
	return nil
}

func validateIdentity(id types.Identity) error {
	if id.IsZero() {
		return fmt.Errorf("%w: null identity", ErrInvalidArgument)
	}
	if bytes.ContainsAny([]byte(id), segmentSeparator) {
		return fmt.Errorf("%w: identity must not contain '/'", ErrInvalidArgument)
	}
	return nil
}
