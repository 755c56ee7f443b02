package cidvault

import "github.com/cidvault/cidvault/pkg/types"

// The ledger-exposed operations. The first Identity argument of every
// mutating call is the authenticated caller; the registries enforce the
// ownership rules on that identity.

// StoreResource records a new (owner, cid) pair.
func (v *Vault) StoreResource(owner types.Identity, cid string) error {
	regs, err := v.registries()
	if err != nil {
		return err
	}
	return regs.Resources.Store(owner, cid)
}

// DeleteResource removes an ownership record. Existing grants survive.
func (v *Vault) DeleteResource(owner types.Identity, cid string) error {
	regs, err := v.registries()
	if err != nil {
		return err
	}
	return regs.Resources.Delete(owner, cid)
}

// UpdateResource atomically renames oldCID to newCID for owner.
func (v *Vault) UpdateResource(owner types.Identity, oldCID, newCID string) error {
	regs, err := v.registries()
	if err != nil {
		return err
	}
	return regs.Resources.Update(owner, oldCID, newCID)
}

// ListOwned returns owner's live records, sorted by cid.
func (v *Vault) ListOwned(owner types.Identity) ([]types.OwnedResource, error) {
	regs, err := v.registries()
	if err != nil {
		return nil, err
	}
	return regs.Resources.ListOwned(owner)
}

// CountOwned returns the number of owner's live records.
func (v *Vault) CountOwned(owner types.Identity) (int, error) {
	regs, err := v.registries()
	if err != nil {
		return 0, err
	}
	return regs.Resources.Count(owner)
}

// Grant authorizes grantee without attaching an envelope.
func (v *Vault) Grant(owner types.Identity, cid string, grantee types.Identity) error {
	regs, err := v.registries()
	if err != nil {
		return err
	}
	return regs.Access.Grant(owner, cid, grantee)
}

// GrantWithKey authorizes grantee and stores its envelope atomically.
func (v *Vault) GrantWithKey(owner types.Identity, cid string, grantee types.Identity, envelope types.Envelope) error {
	regs, err := v.registries()
	if err != nil {
		return err
	}
	return regs.Access.GrantWithKey(owner, cid, grantee, envelope)
}

// Revoke removes an active grant and its envelope.
func (v *Vault) Revoke(owner types.Identity, cid string, grantee types.Identity) error {
	regs, err := v.registries()
	if err != nil {
		return err
	}
	return regs.Access.Revoke(owner, cid, grantee)
}

// SetEncryptedKey replaces the envelope of an active grant.
func (v *Vault) SetEncryptedKey(owner types.Identity, cid string, grantee types.Identity, envelope types.Envelope) error {
	regs, err := v.registries()
	if err != nil {
		return err
	}
	return regs.Access.SetEncryptedKey(owner, cid, grantee, envelope)
}

// SetOwnerEncryptedKey writes the owner-scoped envelope slot.
func (v *Vault) SetOwnerEncryptedKey(owner types.Identity, cid string, envelope types.Envelope) error {
	regs, err := v.registries()
	if err != nil {
		return err
	}
	return regs.Access.SetOwnerEncryptedKey(owner, cid, envelope)
}

// HasAccess reports whether identity may read the resource's envelope.
func (v *Vault) HasAccess(owner types.Identity, cid string, identity types.Identity) (bool, error) {
	regs, err := v.registries()
	if err != nil {
		return false, err
	}
	return regs.Access.HasAccess(owner, cid, identity)
}

// EncryptedKey returns the envelope the caller is entitled to.
func (v *Vault) EncryptedKey(owner types.Identity, cid string, caller types.Identity) (types.Envelope, error) {
	regs, err := v.registries()
	if err != nil {
		return nil, err
	}
	return regs.Access.EncryptedKey(owner, cid, caller)
}

// ListAccessors returns all current grantees of (owner, cid).
func (v *Vault) ListAccessors(owner types.Identity, cid string) ([]types.Identity, error) {
	regs, err := v.registries()
	if err != nil {
		return nil, err
	}
	return regs.Access.ListAccessors(owner, cid)
}

// ListAccessibleResources returns every resource shared with identity.
func (v *Vault) ListAccessibleResources(identity types.Identity) ([]types.SharedResource, error) {
	regs, err := v.registries()
	if err != nil {
		return nil, err
	}
	return regs.Access.ListAccessibleResources(identity)
}

// SetPublicKey overwrites identity's directory slot.
func (v *Vault) SetPublicKey(identity types.Identity, key types.PublicKey) error {
	regs, err := v.registries()
	if err != nil {
		return err
	}
	return regs.Directory.SetPublicKey(identity, key)
}

// PublicKey returns identity's directory slot and whether it was ever set.
func (v *Vault) PublicKey(identity types.Identity) (types.PublicKey, bool, error) {
	regs, err := v.registries()
	if err != nil {
		return nil, false, err
	}
	return regs.Directory.PublicKey(identity)
}
