package identity

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cidvault/cidvault/internal/keywrap"
)

func TestGenerate(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	assert.Len(t, kp.SigningKey, ed25519.PrivateKeySize)
	assert.NotNil(t, kp.EncryptionPub)
	assert.NotNil(t, kp.EncryptionPriv)
	assert.NotEqual(t, kp.EncryptionPub, kp.EncryptionPriv)
}

func TestAddress_Deterministic(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	addr := kp.Address()
	assert.NotEmpty(t, addr)
	assert.Equal(t, addr, kp.Address())

	other, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, addr, other.Address())
}

func TestSignVerify(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	msg := []byte("POST\n/v1/resources\n{}")
	sig := kp.Sign(msg)
	pub := kp.SigningKey.Public().(ed25519.PublicKey)

	assert.True(t, Verify(pub, msg, sig))
	assert.False(t, Verify(pub, []byte("tampered"), sig))
	assert.False(t, Verify(pub[:16], msg, sig))
}

func TestDirectoryKeyRoundtrip(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	dk := kp.DirectoryKey()
	require.Len(t, dk, 32)

	pub, err := EncryptionKeyFromDirectory(dk)
	require.NoError(t, err)
	assert.Equal(t, kp.EncryptionPub, pub)

	_, err = EncryptionKeyFromDirectory(dk[:31])
	require.Error(t, err)
}

func TestMarshalUnmarshal(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	data, err := kp.Marshal()
	require.NoError(t, err)

	restored, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, kp.Address(), restored.Address())
	assert.Equal(t, kp.EncryptionPriv, restored.EncryptionPriv)
	// The public half is recomputed, not stored.
	assert.Equal(t, kp.EncryptionPub, restored.EncryptionPub)
}

func TestUnmarshal_BadInput(t *testing.T) {
	_, err := Unmarshal([]byte("not json"))
	require.Error(t, err)

	_, err = Unmarshal([]byte(`{"signingSeed":"AAA=","encryptionPriv":"AAA="}`))
	require.Error(t, err)
}

// A restored identity must still open envelopes wrapped for the original.
func TestRestoredIdentityUnwraps(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	key, err := keywrap.GenerateContentKey()
	require.NoError(t, err)
	envelope, err := keywrap.Wrap(key, kp.EncryptionPub)
	require.NoError(t, err)

	data, err := kp.Marshal()
	require.NoError(t, err)
	restored, err := Unmarshal(data)
	require.NoError(t, err)

	got, err := keywrap.Unwrap(envelope, restored.EncryptionPub, restored.EncryptionPriv)
	require.NoError(t, err)
	assert.Equal(t, key, got)
}
