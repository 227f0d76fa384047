package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteKV is a SQLite-backed namespaced key-value store.
type SQLiteKV struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database at the given path.
// Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	return db, nil
}

// NewSQLiteKV creates the store and runs its migration.
func NewSQLiteKV(db *sql.DB) (*SQLiteKV, error) {
	s := &SQLiteKV{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteKV) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS sealpost_kv (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (namespace, key)
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteKV) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value FROM sealpost_kv WHERE namespace = ? AND key = ?`, namespace, key)
	var value []byte
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (s *SQLiteKV) Set(ctx context.Context, namespace, key string, value []byte) error {
	query := `
	INSERT INTO sealpost_kv (namespace, key, value, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (namespace, key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query, namespace, key, value,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("kv set %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *SQLiteKV) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sealpost_kv WHERE namespace = ? AND key = ?`, namespace, key)
	return err
}

func (s *SQLiteKV) Keys(ctx context.Context, namespace string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM sealpost_kv WHERE namespace = ? ORDER BY key`, namespace)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
