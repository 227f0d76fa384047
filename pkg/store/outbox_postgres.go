package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sealpost/core/pkg/contracts"
)

// PostgresOutboxStore persists outbox entries in Postgres. It implements
// outbox.Store. The caller imports the driver (github.com/lib/pq) and owns
// the connection pool.
type PostgresOutboxStore struct {
	db *sql.DB
}

// NewPostgresOutboxStore creates the store and runs its migration.
func NewPostgresOutboxStore(db *sql.DB) (*PostgresOutboxStore, error) {
	s := &PostgresOutboxStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresOutboxStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS outbox_entries (
		entry_id TEXT PRIMARY KEY,
		envelope_ref TEXT NOT NULL,
		capsule_ref TEXT NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		artifact_ref TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		attempts JSONB NOT NULL DEFAULT '[]'
	)`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Put inserts or updates an entry.
func (s *PostgresOutboxStore) Put(ctx context.Context, e *contracts.OutboxEntry) error {
	attemptsJSON, err := json.Marshal(e.Attempts)
	if err != nil {
		return fmt.Errorf("marshal attempts for %s: %w", e.EntryID, err)
	}
	query := `
	INSERT INTO outbox_entries (entry_id, envelope_ref, capsule_ref, method, status, artifact_ref, created_at, updated_at, attempts)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (entry_id) DO UPDATE SET
		status = EXCLUDED.status,
		artifact_ref = EXCLUDED.artifact_ref,
		updated_at = EXCLUDED.updated_at,
		attempts = EXCLUDED.attempts`
	_, err = s.db.ExecContext(ctx, query,
		e.EntryID, e.EnvelopeRef, e.CapsuleRef, string(e.Method), string(e.Status), e.ArtifactRef,
		e.CreatedAt.UTC(), e.UpdatedAt.UTC(), string(attemptsJSON),
	)
	if err != nil {
		return fmt.Errorf("put outbox entry %s: %w", e.EntryID, err)
	}
	return nil
}

// Get returns one entry by id, or nil when absent.
func (s *PostgresOutboxStore) Get(ctx context.Context, entryID string) (*contracts.OutboxEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT entry_id, envelope_ref, capsule_ref, method, status, artifact_ref, created_at, updated_at, attempts
		FROM outbox_entries WHERE entry_id = $1`, entryID)
	e, err := scanPostgresOutboxRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// List returns all entries ordered by creation time, oldest first.
func (s *PostgresOutboxStore) List(ctx context.Context) ([]*contracts.OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, envelope_ref, capsule_ref, method, status, artifact_ref, created_at, updated_at, attempts
		FROM outbox_entries ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []*contracts.OutboxEntry
	for rows.Next() {
		e, err := scanPostgresOutboxRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Delete removes an entry.
func (s *PostgresOutboxStore) Delete(ctx context.Context, entryID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM outbox_entries WHERE entry_id = $1`, entryID)
	return err
}

func scanPostgresOutboxRow(scan func(...any) error) (*contracts.OutboxEntry, error) {
	var (
		e            contracts.OutboxEntry
		method       string
		status       string
		attemptsJSON []byte
	)
	if err := scan(&e.EntryID, &e.EnvelopeRef, &e.CapsuleRef, &method, &status, &e.ArtifactRef, &e.CreatedAt, &e.UpdatedAt, &attemptsJSON); err != nil {
		return nil, err
	}
	e.Method = contracts.DeliveryMethod(method)
	e.Status = contracts.DeliveryStatus(status)
	if len(attemptsJSON) > 0 {
		if err := json.Unmarshal(attemptsJSON, &e.Attempts); err != nil {
			return nil, fmt.Errorf("corrupt attempts JSON in outbox entry %s: %w", e.EntryID, err)
		}
	}
	return &e, nil
}
