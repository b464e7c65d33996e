package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MediaStore is a thin wrapper around the minio client used for avatars and
// post images.
type MediaStore struct {
	client *minio.Client
	bucket string
}

// NewMediaStore creates a new MinIO media store and ensures the bucket exists.
func NewMediaStore(cfg *MinIOConfig) (*MediaStore, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	s := &MediaStore{client: mc, bucket: cfg.Bucket}
	// ensure bucket exists (idempotent)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

// Upload stores an object under "<kind>/<random><ext>" and returns its key.
// kind is "avatars" or "posts".
func (s *MediaStore) Upload(ctx context.Context, kind, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	key := kind + "/" + uuid.NewString() + path.Ext(filename)
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("minio put %s: %w", key, err)
	}
	return key, nil
}

// Delete removes a stored object. Deleting a missing key is not an error.
func (s *MediaStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// PresignedURL returns a presigned GET URL valid for the given duration.
func (s *MediaStore) PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, expires, make(url.Values))
	if err != nil {
		return "", err
	}
	return presigned.String(), nil
}

// PublicURL builds the plain object URL for buckets served publicly.
func (s *MediaStore) PublicURL(key string) string {
	return s.client.EndpointURL().String() + "/" + s.bucket + "/" + key
}
