package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/schoolhub-client/internal/model"
)

// fakeMinio implements minioAPI over an in-memory object map.
type fakeMinio struct {
	bucketExists    bool
	bucketExistsErr error
	makeBucketErr   error
	madeBucket      string

	objects map[string][]byte
	putErr  error
	getErr  error
	readErr error

	removeErr error
}

func newFakeMinio() *fakeMinio {
	return &fakeMinio{bucketExists: true, objects: map[string][]byte{}}
}

func (f *fakeMinio) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, f.bucketExistsErr
}
func (f *fakeMinio) MakeBucket(_ context.Context, bucket string, _ minioLib.MakeBucketOptions) error {
	f.madeBucket = bucket
	return f.makeBucketErr
}
func (f *fakeMinio) PutObject(_ context.Context, _ string, name string, r io.Reader, _ int64, _ minioLib.PutObjectOptions) (minioLib.UploadInfo, error) {
	if f.putErr != nil {
		return minioLib.UploadInfo{}, f.putErr
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return minioLib.UploadInfo{}, err
	}
	f.objects[name] = raw
	return minioLib.UploadInfo{Key: name, Size: int64(len(raw))}, nil
}
func (f *fakeMinio) GetObject(_ context.Context, _ string, name string, _ minioLib.GetObjectOptions) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.readErr != nil {
		return io.NopCloser(&failingReader{err: f.readErr}), nil
	}
	raw, ok := f.objects[name]
	if !ok {
		return io.NopCloser(&failingReader{err: minioLib.ErrorResponse{Code: "NoSuchKey"}}), nil
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}
func (f *fakeMinio) RemoveObject(_ context.Context, _ string, name string, _ minioLib.RemoveObjectOptions) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.objects, name)
	return nil
}

type failingReader struct{ err error }

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestNewStoreWithAPI(t *testing.T) {
	ctx := context.Background()

	t.Run("bucket exists", func(t *testing.T) {
		api := newFakeMinio()
		s, err := NewStoreWithAPI(ctx, api, "b", "kiosk")
		require.NoError(t, err)
		assert.Equal(t, "kiosk/credentials.json", s.key)
		assert.Empty(t, api.madeBucket)
	})

	t.Run("creates bucket", func(t *testing.T) {
		api := newFakeMinio()
		api.bucketExists = false
		_, err := NewStoreWithAPI(ctx, api, "bucket", "default")
		require.NoError(t, err)
		assert.Equal(t, "bucket", api.madeBucket)
	})

	t.Run("bucket check error", func(t *testing.T) {
		api := &fakeMinio{bucketExistsErr: errors.New("boom")}
		s, err := NewStoreWithAPI(ctx, api, "bucket", "default")
		assert.Nil(t, s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to ensure bucket exists")
	})

	t.Run("make bucket error", func(t *testing.T) {
		api := &fakeMinio{makeBucketErr: errors.New("fail")}
		s, err := NewStoreWithAPI(ctx, api, "bucket", "default")
		assert.Nil(t, s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create bucket")
	})
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	api := newFakeMinio()
	s, err := NewStoreWithAPI(ctx, api, "b", "default")
	require.NoError(t, err)

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())

	user := model.User{ID: "7", Name: "Sam", Email: "sam@school.test", Role: model.RoleStudent}
	require.NoError(t, s.Set(ctx, "access", user, "refresh"))

	got, err = s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access", got.AccessToken)
	assert.Equal(t, "refresh", got.RefreshToken)
	require.NotNil(t, got.User)
	assert.Equal(t, user, *got.User)

	require.NoError(t, s.Set(ctx, "access-2", user, ""))
	got, err = s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-2", got.AccessToken)
	assert.Empty(t, got.RefreshToken)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))
	got, err = s.Get(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		prepare func(f *fakeMinio)
		call    func(s *Store) error
		wantErr string
	}{
		{
			name:    "get error",
			prepare: func(f *fakeMinio) { f.getErr = errors.New("get-fail") },
			call:    func(s *Store) error { _, err := s.Get(ctx); return err },
			wantErr: "failed to get object",
		},
		{
			name:    "read error",
			prepare: func(f *fakeMinio) { f.readErr = errors.New("reset") },
			call:    func(s *Store) error { _, err := s.Get(ctx); return err },
			wantErr: "failed to read object",
		},
		{
			name:    "corrupt object",
			prepare: func(f *fakeMinio) { f.objects["default/credentials.json"] = []byte("{not json") },
			call:    func(s *Store) error { _, err := s.Get(ctx); return err },
			wantErr: model.ErrCorruptCredentials.Error(),
		},
		{
			name:    "put error",
			prepare: func(f *fakeMinio) { f.putErr = errors.New("put-fail") },
			call:    func(s *Store) error { return s.Set(ctx, "a", model.User{}, "") },
			wantErr: "failed to upload object",
		},
		{
			name:    "remove error",
			prepare: func(f *fakeMinio) { f.removeErr = errors.New("remove-fail") },
			call:    func(s *Store) error { return s.Clear(ctx) },
			wantErr: "failed to delete object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeMinio()
			tt.prepare(api)
			s := &Store{api: api, bucket: "b", key: "default/credentials.json"}

			err := tt.call(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStore_CorruptObjectIsSentinel(t *testing.T) {
	api := newFakeMinio()
	api.objects["default/credentials.json"] = []byte(`{"access_token":"a","cached_user":"{broken"}`)
	s := &Store{api: api, bucket: "b", key: "default/credentials.json"}

	_, err := s.Get(context.Background())
	assert.ErrorIs(t, err, model.ErrCorruptCredentials)
}
