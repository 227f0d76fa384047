package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealpost/core/pkg/contracts"
)

func newMockPostgresStore(t *testing.T) (*PostgresOutboxStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS outbox_entries")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewPostgresOutboxStore(db)
	require.NoError(t, err)
	return s, mock
}

func TestPostgresOutboxPut(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	entry := sampleEntry("entry-1", created)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox_entries")).
		WithArgs("entry-1", "env-1", "cap-1", "mail", "queued", "",
			created, created, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Put(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresOutboxGet(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"entry_id", "envelope_ref", "capsule_ref", "method", "status",
		"artifact_ref", "created_at", "updated_at", "attempts",
	}).AddRow("entry-1", "env-1", "cap-1", "mail", "sent", "msg-9",
		created, created.Add(time.Minute),
		[]byte(`[{"at":"2026-03-14T09:00:00Z","status":"queued"},{"at":"2026-03-14T09:01:00Z","status":"sent"}]`))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT entry_id, envelope_ref, capsule_ref")).
		WithArgs("entry-1").
		WillReturnRows(rows)

	entry, err := s.Get(context.Background(), "entry-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, contracts.StatusSent, entry.Status)
	assert.Equal(t, "msg-9", entry.ArtifactRef)
	require.Len(t, entry.Attempts, 2)
	assert.Equal(t, contracts.StatusQueued, entry.Attempts[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresOutboxGetAbsent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT entry_id, envelope_ref, capsule_ref")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"entry_id", "envelope_ref", "capsule_ref", "method", "status",
			"artifact_ref", "created_at", "updated_at", "attempts",
		}))

	entry, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, entry)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresOutboxCorruptAttempts(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"entry_id", "envelope_ref", "capsule_ref", "method", "status",
		"artifact_ref", "created_at", "updated_at", "attempts",
	}).AddRow("entry-1", "env-1", "cap-1", "mail", "queued", "",
		created, created, []byte(`not json`))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT entry_id, envelope_ref, capsule_ref")).
		WithArgs("entry-1").
		WillReturnRows(rows)

	_, err := s.Get(context.Background(), "entry-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt attempts")
}
