package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealpost/core/pkg/contracts"
)

func newTestSQLiteKV(t *testing.T) *SQLiteKV {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	kv, err := NewSQLiteKV(db)
	require.NoError(t, err)
	return kv
}

func TestSQLiteKVRoundTrip(t *testing.T) {
	kv := newTestSQLiteKV(t)
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "boundary", "declaration")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "boundary", "declaration", []byte(`{"a":1}`)))
	value, ok, err := kv.Get(ctx, "boundary", "declaration")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"a":1}`), value)

	// Upsert replaces.
	require.NoError(t, kv.Set(ctx, "boundary", "declaration", []byte(`{"a":2}`)))
	value, _, err = kv.Get(ctx, "boundary", "declaration")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":2}`), value)
}

func TestSQLiteKVNamespacesAreIsolated(t *testing.T) {
	kv := newTestSQLiteKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "boundary", "k", []byte("b")))
	require.NoError(t, kv.Set(ctx, "profiles", "k", []byte("p")))

	value, ok, err := kv.Get(ctx, "boundary", "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("b"), value)

	keys, err := kv.Keys(ctx, "profiles")
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)

	require.NoError(t, kv.Delete(ctx, "boundary", "k"))
	_, ok, err = kv.Get(ctx, "boundary", "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func sampleEntry(id string, created time.Time) *contracts.OutboxEntry {
	return &contracts.OutboxEntry{
		EntryID:     id,
		EnvelopeRef: "env-1",
		CapsuleRef:  "cap-1",
		Method:      contracts.DeliveryMail,
		Status:      contracts.StatusQueued,
		CreatedAt:   created,
		UpdatedAt:   created,
		Attempts: []contracts.DeliveryAttempt{
			{At: created, Status: contracts.StatusQueued},
		},
	}
}

func TestSQLiteOutboxRoundTrip(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s, err := NewSQLiteOutboxStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	created := time.Date(2026, 3, 14, 9, 0, 0, 123456789, time.UTC)
	entry := sampleEntry("entry-1", created)
	require.NoError(t, s.Put(ctx, entry))

	got, err := s.Get(ctx, "entry-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.EnvelopeRef, got.EnvelopeRef)
	assert.Equal(t, contracts.StatusQueued, got.Status)
	assert.True(t, got.CreatedAt.Equal(created), "nanosecond precision survives the round trip")
	require.Len(t, got.Attempts, 1)
	assert.Equal(t, contracts.StatusQueued, got.Attempts[0].Status)
}

func TestSQLiteOutboxGetAbsent(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s, err := NewSQLiteOutboxStore(db)
	require.NoError(t, err)

	got, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteOutboxUpsertAndList(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s, err := NewSQLiteOutboxStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	first := sampleEntry("entry-1", base)
	second := sampleEntry("entry-2", base.Add(time.Minute))
	require.NoError(t, s.Put(ctx, first))
	require.NoError(t, s.Put(ctx, second))

	// Status change persists through the same Put path.
	first.Status = contracts.StatusSending
	first.UpdatedAt = base.Add(2 * time.Minute)
	first.Attempts = append(first.Attempts, contracts.DeliveryAttempt{
		At: first.UpdatedAt, Status: contracts.StatusSending,
	})
	require.NoError(t, s.Put(ctx, first))

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "entry-1", entries[0].EntryID)
	assert.Equal(t, contracts.StatusSending, entries[0].Status)
	assert.Len(t, entries[0].Attempts, 2)

	require.NoError(t, s.Delete(ctx, "entry-2"))
	entries, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
