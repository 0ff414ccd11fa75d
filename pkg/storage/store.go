package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStore is the contract shared by the MinIO and on-disk backends.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string) (string, time.Time, error)
	Delete(ctx context.Context, key string) error
}

var (
	_ ObjectStore = (*MinIOStore)(nil)
	_ ObjectStore = (*LocalStorage)(nil)
)
