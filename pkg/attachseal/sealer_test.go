package attachseal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	s, err := NewSealer(key)
	require.NoError(t, err)

	plaintext := []byte("original attachment bytes")
	sealed, err := s.Seal("att-1", plaintext)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "original attachment")

	opened, err := s.Open("att-1", sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenRejectsWrongAttachment(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	s, err := NewSealer(key)
	require.NoError(t, err)

	sealed, err := s.Seal("att-1", []byte("payload"))
	require.NoError(t, err)

	_, err = s.Open("att-2", sealed)
	assert.Error(t, err)
}

func TestOpenRejectsTampering(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	s, err := NewSealer(key)
	require.NoError(t, err)

	sealed, err := s.Seal("att-1", []byte("payload"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = s.Open("att-1", sealed)
	assert.Error(t, err)
}

func TestNewSealerRejectsShortKey(t *testing.T) {
	_, err := NewSealer([]byte("short"))
	assert.Error(t, err)
}
