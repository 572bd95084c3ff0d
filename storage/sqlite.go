package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteStore is a durable Store backed by a SQLite table.
//
// It expects an *sql.DB opened with a SQLite driver. The caller imports the
// driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db         *sql.DB
	table      string
	schemaOnce sync.Once
	schemaErr  error
}

// NewSQLiteStore builds a store over db using table (default "kv").
func NewSQLiteStore(db *sql.DB, table string) (*SQLiteStore, error) {
	if db == nil {
		return nil, ErrStoreUnavailable
	}
	if table == "" {
		table = "kv"
	}
	if !tableNamePattern.MatchString(table) {
		return nil, ErrInvalidKey.Clone().WithMetadata(map[string]any{"table": table})
	}
	return &SQLiteStore{db: db, table: table}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, ErrStoreUnavailable
	}
	key, err := normalizeKey(key)
	if err != nil {
		return nil, false, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, false, err
	}

	q := fmt.Sprintf(`SELECT v FROM %s WHERE k = ?`, s.table)
	var value string
	err = s.db.QueryRowContext(ctx, q, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	if s == nil || s.db == nil {
		return ErrStoreUnavailable
	}
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	q := fmt.Sprintf(`INSERT INTO %s (k, v, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(k) DO UPDATE SET v = excluded.v, updated_at = excluded.updated_at`, s.table)
	_, err = s.db.ExecContext(ctx, q, key, string(value), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return ErrStoreUnavailable
	}
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE k = ?`, s.table), key)
	return err
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`, s.table)
		_, s.schemaErr = s.db.ExecContext(ctx, ddl)
	})
	return s.schemaErr
}
