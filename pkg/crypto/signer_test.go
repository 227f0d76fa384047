package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	signer, err := NewEd25519Signer("key-1")
	require.NoError(t, err)
	assert.Equal(t, AlgorithmEd25519, signer.Algorithm())
	assert.Equal(t, "key-1", signer.KeyID())

	data := []byte("sha256:deadbeef")
	sig, err := signer.Sign(data)
	require.NoError(t, err)

	ok, err := Verify(signer.PublicKey(), sig, data)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify(signer.PublicKey(), sig, []byte("tampered"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyRejectsMalformedInputs(t *testing.T) {
	signer, err := NewEd25519Signer("key-1")
	require.NoError(t, err)
	sig, err := signer.Sign([]byte("data"))
	require.NoError(t, err)

	_, err = Verify("not-hex", sig, []byte("data"))
	assert.Error(t, err)
	_, err = Verify(signer.PublicKey(), "not-hex", []byte("data"))
	assert.Error(t, err)
	_, err = Verify("abcd", sig, []byte("data"))
	assert.Error(t, err, "wrong key size")
}
