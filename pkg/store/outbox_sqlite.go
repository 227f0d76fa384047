package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sealpost/core/pkg/contracts"

	_ "modernc.org/sqlite"
)

// SQLiteOutboxStore persists outbox entries in SQLite. It implements
// outbox.Store.
type SQLiteOutboxStore struct {
	db *sql.DB
}

// NewSQLiteOutboxStore creates the store and runs its migration.
func NewSQLiteOutboxStore(db *sql.DB) (*SQLiteOutboxStore, error) {
	s := &SQLiteOutboxStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteOutboxStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS outbox_entries (
		entry_id TEXT PRIMARY KEY,
		envelope_ref TEXT NOT NULL,
		capsule_ref TEXT NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		artifact_ref TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		attempts JSON NOT NULL DEFAULT '[]'
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Put inserts or replaces an entry. Attempts are stored as a JSON column;
// the append-only discipline is the outbox manager's responsibility.
func (s *SQLiteOutboxStore) Put(ctx context.Context, e *contracts.OutboxEntry) error {
	attemptsJSON, err := json.Marshal(e.Attempts)
	if err != nil {
		return fmt.Errorf("marshal attempts for %s: %w", e.EntryID, err)
	}
	query := `
	INSERT INTO outbox_entries (entry_id, envelope_ref, capsule_ref, method, status, artifact_ref, created_at, updated_at, attempts)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (entry_id) DO UPDATE SET
		status = excluded.status,
		artifact_ref = excluded.artifact_ref,
		updated_at = excluded.updated_at,
		attempts = excluded.attempts`
	_, err = s.db.ExecContext(ctx, query,
		e.EntryID, e.EnvelopeRef, e.CapsuleRef, string(e.Method), string(e.Status), e.ArtifactRef,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
		e.UpdatedAt.UTC().Format(time.RFC3339Nano),
		string(attemptsJSON),
	)
	if err != nil {
		return fmt.Errorf("put outbox entry %s: %w", e.EntryID, err)
	}
	return nil
}

// Get returns one entry by id, or nil when absent.
func (s *SQLiteOutboxStore) Get(ctx context.Context, entryID string) (*contracts.OutboxEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT entry_id, envelope_ref, capsule_ref, method, status, artifact_ref, created_at, updated_at, attempts
		FROM outbox_entries WHERE entry_id = ?`, entryID)
	e, err := scanOutboxRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// List returns all entries ordered by creation time, oldest first.
func (s *SQLiteOutboxStore) List(ctx context.Context) ([]*contracts.OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, envelope_ref, capsule_ref, method, status, artifact_ref, created_at, updated_at, attempts
		FROM outbox_entries ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []*contracts.OutboxEntry
	for rows.Next() {
		e, err := scanOutboxRow(rows.Scan)
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

// Delete removes an entry. Entries are deleted only by explicit user action.
func (s *SQLiteOutboxStore) Delete(ctx context.Context, entryID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM outbox_entries WHERE entry_id = ?`, entryID)
	return err
}

func scanOutboxRow(scan func(...any) error) (*contracts.OutboxEntry, error) {
	var (
		entryID, envelopeRef, capsuleRef string
		method, status, artifactRef      string
		createdAt, updatedAt             string
		attemptsJSON                     string
	)
	if err := scan(&entryID, &envelopeRef, &capsuleRef, &method, &status, &artifactRef, &createdAt, &updatedAt, &attemptsJSON); err != nil {
		return nil, err
	}

	var attempts []contracts.DeliveryAttempt
	if attemptsJSON != "" {
		if err := json.Unmarshal([]byte(attemptsJSON), &attempts); err != nil {
			return nil, fmt.Errorf("corrupt attempts JSON in outbox entry %s: %w", entryID, err)
		}
	}

	return &contracts.OutboxEntry{
		EntryID:     entryID,
		EnvelopeRef: envelopeRef,
		CapsuleRef:  capsuleRef,
		Method:      contracts.DeliveryMethod(method),
		Status:      contracts.DeliveryStatus(status),
		ArtifactRef: artifactRef,
		CreatedAt:   parseTime(createdAt),
		UpdatedAt:   parseTime(updatedAt),
		Attempts:    attempts,
	}, nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
