package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dtroode/schoolhub-client/internal/model"
	"github.com/dtroode/schoolhub-client/internal/storage"
)

const keyPrefix = "schoolhub:session:"

var _ model.CredentialStore = (*Store)(nil)

// Store keeps the credential entries of one namespace in a single redis hash.
type Store struct {
	client redis.Cmdable
	key    string
}

func NewStore(client redis.Cmdable, namespace string) *Store {
	return &Store{client: client, key: keyPrefix + namespace}
}

func (s *Store) Get(ctx context.Context) (model.StoredCredentials, error) {
	entries, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return model.StoredCredentials{}, fmt.Errorf("failed to read credentials: %w", err)
	}
	return storage.Decode(entries)
}

func (s *Store) Set(ctx context.Context, accessToken string, user model.User, refreshToken string) error {
	entries, err := storage.Encode(accessToken, user, refreshToken)
	if err != nil {
		return err
	}

	values := make([]any, 0, 2*len(entries))
	for k, v := range entries {
		values = append(values, k, v)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.HSet(ctx, s.key, values...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}
