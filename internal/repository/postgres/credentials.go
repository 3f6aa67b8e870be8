package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/schoolhub-client/internal/model"
	"github.com/dtroode/schoolhub-client/internal/storage"
)

var _ model.CredentialStore = (*CredentialRepository)(nil)

// CredentialRepository keeps one profile's credentials in the shared
// credentials table, scoped by namespace.
type CredentialRepository struct {
	db        *Connection
	namespace string
}

func NewCredentialRepository(db *Connection, namespace string) *CredentialRepository {
	return &CredentialRepository{db: db, namespace: namespace}
}

func (r *CredentialRepository) Get(ctx context.Context) (model.StoredCredentials, error) {
	const query = `SELECT key, value FROM credentials WHERE namespace = $1`

	rows, err := r.db.Query(ctx, query, r.namespace)
	if err != nil {
		return model.StoredCredentials{}, fmt.Errorf("failed to read credentials: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]string, 3)
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

func (r *CredentialRepository) Set(ctx context.Context, accessToken string, user model.User, refreshToken string) error {
	entries, err := storage.Encode(accessToken, user, refreshToken)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `DELETE FROM credentials WHERE namespace = $1`, r.namespace); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}

	const insert = `
        INSERT INTO credentials (namespace, key, value, updated_at)
        VALUES ($1, $2, $3, NOW())
    `
	batch := &pgx.Batch{}
	for key, value := range entries {
		batch.Queue(insert, r.namespace, key, value)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit credentials: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Clear(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM credentials WHERE namespace = $1`, r.namespace); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}
