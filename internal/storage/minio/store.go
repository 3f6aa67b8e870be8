package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dtroode/schoolhub-client/internal/model"
	"github.com/dtroode/schoolhub-client/internal/storage"
)

const objectName = "credentials.json"

// Internal adapter interface to enable mocking without a real MinIO server.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

type minioClientWrapper struct{ c *minio.Client }

func (w minioClientWrapper) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return w.c.BucketExists(ctx, bucketName)
}
func (w minioClientWrapper) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return w.c.MakeBucket(ctx, bucketName, opts)
}
func (w minioClientWrapper) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return w.c.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}
func (w minioClientWrapper) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	obj, err := w.c.GetObject(ctx, bucketName, objectName, opts)
	if err != nil {
		return nil, err
	}
	return obj, nil
}
func (w minioClientWrapper) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return w.c.RemoveObject(ctx, bucketName, objectName, opts)
}

var _ model.CredentialStore = (*Store)(nil)

// Store keeps the credential entries of one namespace as a single JSON object,
// so a write replaces all of them at once.
type Store struct {
	api    minioAPI
	bucket string
	key    string
}

// Options configures a connection to an S3-compatible endpoint.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Namespace string
}

// NewStore connects to the endpoint and makes sure the bucket exists.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return NewStoreWithAPI(ctx, minioClientWrapper{c: client}, opts.Bucket, opts.Namespace)
}

// NewStoreWithAPI allows injecting a mockable API (used in tests).
func NewStoreWithAPI(ctx context.Context, api minioAPI, bucket, namespace string) (*Store, error) {
	s := &Store{
		api:    api,
		bucket: bucket,
		key:    path.Join(namespace, objectName),
	}

	if err := s.ensureBucketExists(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return s, nil
}

func (s *Store) ensureBucketExists(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

func (s *Store) Get(ctx context.Context) (model.StoredCredentials, error) {
	obj, err := s.api.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return model.StoredCredentials{}, nil
		}
		return model.StoredCredentials{}, fmt.Errorf("failed to get object: %w", err)
	}
	defer obj.Close()

	// minio reports a missing key on first read, not on GetObject.
	raw, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return model.StoredCredentials{}, nil
		}
		return model.StoredCredentials{}, fmt.Errorf("failed to read object: %w", err)
	}

	var entries map[string]string
	if err := json.Unmarshal(raw, &entries); err != nil {
		return model.StoredCredentials{}, fmt.Errorf("%w: %v", model.ErrCorruptCredentials, err)
	}

	return storage.Decode(entries)
}

func (s *Store) Set(ctx context.Context, accessToken string, user model.User, refreshToken string) error {
	entries, err := storage.Encode(accessToken, user, refreshToken)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	_, err = s.api.PutObject(ctx, s.bucket, s.key, bytes.NewReader(raw), int64(len(raw)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.api.RemoveObject(ctx, s.bucket, s.key, minio.RemoveObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
