package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("sealed attachment bytes")
	ref, err := s.Put(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, Ref(data), ref)

	got, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	ok, err := s.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileStorePutIsIdempotent(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ref1, err := s.Put(ctx, []byte("same"))
	require.NoError(t, err)
	ref2, err := s.Put(ctx, []byte("same"))
	require.NoError(t, err)
	assert.Equal(t, ref1, ref2)
}

func TestFileStoreRejectsBadRefs(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Get(ctx, "md5:abcd")
	assert.Error(t, err)
	_, err = s.Get(ctx, "sha256:not-hex")
	assert.Error(t, err)
	_, err = s.Get(ctx, Ref([]byte("never stored")))
	assert.Error(t, err)
}

func TestFileStoreDelete(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := s.Put(ctx, []byte("ephemeral"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, ref))

	ok, err := s.Exists(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting an absent ref is fine.
	require.NoError(t, s.Delete(ctx, ref))
}
