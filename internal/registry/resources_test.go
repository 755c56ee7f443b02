package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cidvault/cidvault/pkg/types"
)

const (
	user1 = types.Identity("addr-user1")
	user2 = types.Identity("addr-user2")
	user3 = types.Identity("addr-user3")
)

func TestStoreResource(t *testing.T) {
	regs := newTestRegistries(t)

	require.NoError(t, regs.Resources.Store(user1, "QmTestCID1"))

	owned, err := regs.Resources.ListOwned(user1)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "QmTestCID1", owned[0].CID)
	assert.False(t, owned[0].CreatedAt.IsZero())
}

func TestStoreResource_DuplicateFails(t *testing.T) {
	regs := newTestRegistries(t)

	require.NoError(t, regs.Resources.Store(user1, "QmTestCID2"))
	err := regs.Resources.Store(user1, "QmTestCID2")
	require.ErrorIs(t, err, ErrAlreadyExists)
	assert.Contains(t, err.Error(), "CID already exists")
}

func TestStoreResource_SameCIDDifferentOwners(t *testing.T) {
	regs := newTestRegistries(t)

	require.NoError(t, regs.Resources.Store(user1, "QmTestCID3"))
	require.NoError(t, regs.Resources.Store(user2, "QmTestCID3"))

	count1, err := regs.Resources.Count(user1)
	require.NoError(t, err)
	count2, err := regs.Resources.Count(user2)
	require.NoError(t, err)
	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
}

func TestStoreResource_InvalidArguments(t *testing.T) {
	regs := newTestRegistries(t)

	require.ErrorIs(t, regs.Resources.Store(types.NullIdentity, "QmX"), ErrInvalidArgument)
	require.ErrorIs(t, regs.Resources.Store(user1, ""), ErrInvalidArgument)
	require.ErrorIs(t, regs.Resources.Store(user1, "Qm/slash"), ErrInvalidArgument)
}

func TestDeleteResource(t *testing.T) {
	regs := newTestRegistries(t)

	require.NoError(t, regs.Resources.Store(user1, "QmTestCID4"))
	require.NoError(t, regs.Resources.Delete(user1, "QmTestCID4"))

	owned, err := regs.Resources.ListOwned(user1)
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestDeleteResource_MissingFails(t *testing.T) {
	regs := newTestRegistries(t)

	err := regs.Resources.Delete(user1, "QmFakeCID")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateResource(t *testing.T) {
	regs := newTestRegistries(t)

	require.NoError(t, regs.Resources.Store(user1, "QmOld"))
	before, err := regs.Resources.ListOwned(user1)
	require.NoError(t, err)

	require.NoError(t, regs.Resources.Update(user1, "QmOld", "QmNew"))

	owned, err := regs.Resources.ListOwned(user1)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "QmNew", owned[0].CID)
	// The renamed record takes a fresh timestamp; no link to the old
	// identifier is preserved.
	assert.False(t, owned[0].CreatedAt.Before(before[0].CreatedAt))
}

func TestUpdateResource_Failures(t *testing.T) {
	regs := newTestRegistries(t)

	require.NoError(t, regs.Resources.Store(user1, "QmA"))
	require.NoError(t, regs.Resources.Store(user1, "QmB"))

	require.ErrorIs(t, regs.Resources.Update(user1, "QmMissing", "QmC"), ErrNotFound)
	require.ErrorIs(t, regs.Resources.Update(user1, "QmA", "QmB"), ErrAlreadyExists)

	// Failed rename leaves both records untouched.
	count, err := regs.Resources.Count(user1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestListOwned_SortedByCID(t *testing.T) {
	regs := newTestRegistries(t)

	for _, cid := range []string{"QmC", "QmA", "QmB"} {
		require.NoError(t, regs.Resources.Store(user1, cid))
	}

	owned, err := regs.Resources.ListOwned(user1)
	require.NoError(t, err)
	require.Len(t, owned, 3)
	assert.Equal(t, "QmA", owned[0].CID)
	assert.Equal(t, "QmB", owned[1].CID)
	assert.Equal(t, "QmC", owned[2].CID)
}

func TestListOwned_ScopedToOwner(t *testing.T) {
	regs := newTestRegistries(t)

	require.NoError(t, regs.Resources.Store(user1, "QmMine"))
	require.NoError(t, regs.Resources.Store(user2, "QmTheirs"))

	owned, err := regs.Resources.ListOwned(user1)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "QmMine", owned[0].CID)
}
