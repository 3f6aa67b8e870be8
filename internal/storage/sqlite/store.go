// Package sqlite stores session credentials in a local SQLite file.
// This is the default backend: the file lives next to the client and
// survives restarts, like browser local storage.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/dtroode/schoolhub-client/database"
	"github.com/dtroode/schoolhub-client/internal/model"
	"github.com/dtroode/schoolhub-client/internal/storage"
)

const (
	dirPermissions  = 0o700
	filePermissions = 0o600

	// busyTimeoutMs bounds how long a write waits on a locked file.
	busyTimeoutMs = 5000

	connectionTimeout = 5 * time.Second
)

// entryOrder fixes the insert order so writes are deterministic.
var entryOrder = []string{model.KeyAccessToken, model.KeyCachedUser, model.KeyRefreshToken}

var _ model.CredentialStore = (*Store)(nil)

// Store implements model.CredentialStore on a credentials table.
type Store struct {
	db        *sql.DB
	namespace string
	now       func() time.Time
}

// Open creates the database file if needed, migrates it and returns a Store
// scoped to namespace.
func Open(path, namespace string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	if err := createPrivateFile(path); err != nil {
		return nil, err
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL", path, busyTimeoutMs)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite store: %w", err)
	}

	if err := database.Migrate(db, database.DialectSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize sqlite store: %w", err)
	}

	return NewStore(db, namespace), nil
}

// createPrivateFile makes sure the database file exists with owner-only
// permissions before the driver opens it. SQLite gives its -wal and -shm
// files the permissions of the main file.
func createPrivateFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to create store file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to create store file: %w", err)
	}

	// An existing file may predate the restriction.
	if err := os.Chmod(path, filePermissions); err != nil {
		return fmt.Errorf("failed to restrict store file permissions: %w", err)
	}
	return nil
}

// NewStore wraps an already migrated database.
func NewStore(db *sql.DB, namespace string) *Store {
	return &Store{db: db, namespace: namespace, now: time.Now}
}

// Get reads every entry of the namespace.
func (s *Store) Get(ctx context.Context) (model.StoredCredentials, error) {
	const query = `SELECT key, value FROM credentials WHERE namespace = ?`

	rows, err := s.db.QueryContext(ctx, query, s.namespace)
	if err != nil {
		return model.StoredCredentials{}, fmt.Errorf("failed to read credentials: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]string, len(entryOrder))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return model.StoredCredentials{}, fmt.Errorf("failed to scan credential entry: %w", err)
		}
		entries[key] = value
	}
	if err := rows.Err(); err != nil {
		return model.StoredCredentials{}, fmt.Errorf("failed to read credentials: %w", err)
	}

	return storage.Decode(entries)
}

// Set replaces all entries of the namespace in one transaction.
func (s *Store) Set(ctx context.Context, accessToken string, user model.User, refreshToken string) (err error) {
	entries, err := storage.Encode(accessToken, user, refreshToken)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM credentials WHERE namespace = ?`, s.namespace); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}

	updatedAt := s.now().UTC().Format(time.RFC3339)
	for _, key := range entryOrder {
		value, ok := entries[key]
		if !ok {
			continue
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO credentials (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)`,
			s.namespace, key, value, updatedAt,
		); err != nil {
			return fmt.Errorf("failed to write credential %s: %w", key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credentials: %w", err)
	}
	return nil
}

// Clear deletes every entry of the namespace.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE namespace = ?`, s.namespace); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
