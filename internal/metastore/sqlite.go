package metastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

const createMetaTable = `
CREATE TABLE IF NOT EXISTS proc_meta (
    key   TEXT NOT NULL,
    field TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (key, field)
)`

const upsertField = `
INSERT INTO proc_meta (key, field, value) VALUES (?, ?, ?)
ON CONFLICT (key, field) DO UPDATE SET value = excluded.value`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite, one row per record field.
// A file-backed database is held under an exclusive lock file so only one
// process serves it.
type SQLiteStore struct {
	db   *sql.DB
	lock *flock.Flock
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	var lock *flock.Flock
	if !inMemory(dbPath) {
		lock = flock.New(dbPath + ".lock")
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("metadata database %s is in use by another process", dbPath)
		}
	}

	s, err := openSQLite(dbPath)
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, err
	}
	s.lock = lock
	return s, nil
}

func inMemory(dbPath string) bool {
	return dbPath == "" || dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")
}

func openSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createMetaTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create proc_meta table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection and releases the lock file.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if s.lock != nil {
		err = errors.Join(err, s.lock.Unlock())
	}
	return err
}

// WriteFields upserts every field inside one transaction.
func (s *SQLiteStore) WriteFields(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for field, value := range fields {
		if _, err := tx.ExecContext(ctx, upsertField, key, field, value); err != nil {
			return fmt.Errorf("upsert field %s: %w", field, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReadField(ctx context.Context, key, field string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM proc_meta WHERE key = ? AND field = ?", key, field,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read field: %w", err)
	}
	return value, true, nil
}

func (s *SQLiteStore) ReadAll(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT field, value FROM proc_meta WHERE key = ?", key,
	)
	if err != nil {
		return nil, fmt.Errorf("read fields: %w", err)
	}
	defer rows.Close()

	fields := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		fields[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fields: %w", err)
	}
	return fields, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, key string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM proc_meta WHERE key = ?", key,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("count fields: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM proc_meta WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}
