package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/noah-isme/student-tracker-api/pkg/config"
)

// MinIOStore keeps objects in an S3-compatible bucket.
type MinIOStore struct {
	client     *minio.Client
	bucket     string
	region     string
	presignTTL time.Duration
	logger     *zap.Logger

	ensureMu      sync.Mutex
	bucketEnsured bool
}

// NewMinIOStore builds the client and makes a best-effort attempt to create
// the bucket; a failure is retried on first use.
func NewMinIOStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*MinIOStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	store := &MinIOStore{
		client:     client,
		bucket:     cfg.Bucket,
		region:     cfg.Region,
		presignTTL: cfg.PresignTTL,
		logger:     logger,
	}
	if store.presignTTL <= 0 {
		store.presignTTL = 15 * time.Minute
	}

	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.ensureBucket(bootCtx); err != nil {
		logger.Warn("minio not ready during startup", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket), zap.Error(err))
	}
	return store, nil
}

func (s *MinIOStore) ensureBucket(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.bucketEnsured {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		s.logger.Info("created bucket", zap.String("bucket", s.bucket))
	}
	s.bucketEnsured = true
	return nil
}

// Put uploads an object.
func (s *MinIOStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload object: %w", err)
	}
	s.logger.Debug("object uploaded", zap.String("bucket", s.bucket), zap.String("key", key), zap.String("etag", info.ETag), zap.Int64("size", size))
	return nil
}

// PresignGet returns a time-limited download URL.
func (s *MinIOStore) PresignGet(ctx context.Context, key string) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.presignTTL)
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignTTL, url.Values{})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign object: %w", err)
	}
	return u.String(), expiresAt, nil
}

// Delete removes an object; missing objects are not an error.
func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Ping verifies the bucket is reachable for readiness checks.
func (s *MinIOStore) Ping(ctx context.Context) error {
	return s.ensureBucket(ctx)
}
