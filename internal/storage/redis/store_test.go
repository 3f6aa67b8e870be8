package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/schoolhub-client/internal/model"
)

func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewStore_Key(t *testing.T) {
	s := NewStore(unreachableClient(t), "kiosk-3")
	assert.Equal(t, "schoolhub:session:kiosk-3", s.key)
}

func TestStore_UnreachableServer(t *testing.T) {
	ctx := context.Background()
	s := NewStore(unreachableClient(t), "default")

	_, err := s.Get(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read credentials")

	err = s.Set(ctx, "a", model.User{ID: "1"}, "r")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write credentials")

	err = s.Clear(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to clear credentials")
}
