package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"swarabox/config"
	"swarabox/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Object is a readable stored object. *minio.Object satisfies it.
type Object interface {
	io.ReadCloser
	Stat() (minio.ObjectInfo, error)
}

// Store wraps the MinIO client for a single bucket. All uploaded media
// (songs, covers, images) lives here; the database only holds object paths.
type Store struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to MinIO and ensures the bucket exists.
func NewMinioStore(cfg *config.Config) (*Store, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{
			Region: cfg.MinioRegion,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("bucket created", logger.String("bucket", cfg.MinioBucket))
	}

	logger.Info("MinIO store ready",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))
	return &Store{client: client, bucket: cfg.MinioBucket}, nil
}

// Upload stores an object under the given path.
func (s *Store) Upload(ctx context.Context, objectPath string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{
		ContentType:      contentType,
		DisableMultipart: true,
	}
	if _, err := s.client.PutObject(ctx, s.bucket, objectPath, reader, size, opts); err != nil {
		return fmt.Errorf("failed to upload %s: %w", objectPath, err)
	}
	return nil
}

// Remove deletes an object. Missing objects are not an error.
func (s *Store) Remove(ctx context.Context, objectPath string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectPath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove %s: %w", objectPath, err)
	}
	return nil
}

// Get opens an object for reading. The caller must close it.
func (s *Store) Get(ctx context.Context, objectPath string) (Object, error) {
	object, err := s.client.GetObject(ctx, s.bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", objectPath, err)
	}
	return object, nil
}
