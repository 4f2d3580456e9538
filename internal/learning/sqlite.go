package learning

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the durable Store adapter backed by a single sqlite
// file. All three collections share one table keyed by (collection, key).
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS learning_records (
	collection TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (collection, key)
);
CREATE INDEX IF NOT EXISTS idx_learning_collection ON learning_records(collection);
`

// NewSQLiteStore opens (creating if needed) the learning database at
// path. The busy timeout covers concurrent readers during a write.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening learning database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing learning schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, collection, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM learning_records WHERE collection = ? AND key = ?`,
		collection, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s/%s: %w", collection, key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, collection, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO learning_records (collection, key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		collection, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, collection, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM learning_records WHERE collection = ? AND key = ?`, collection, key)
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, collection string) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM learning_records WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", collection, err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
