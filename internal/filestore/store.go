// Package filestore defines the interface of the object stores that CRUD
// exports are written to and imports are read from.
//
// Providers live in subpackages (local, minio). Callers depend only on this
// package:
//
//	store, err := local.New(cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	_, err = store.PutObject(ctx, "exports", "users.csv", r, -1, "text/csv")
package filestore

import (
	"context"
	"io"
)

// Store is the interface every storage provider implements.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// EnsureBucket creates bucket when it does not exist.
	EnsureBucket(ctx context.Context, bucket string) error

	// PutObject stores r under key. size may be -1 when unknown.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*ObjectInfo, error)

	// GetObject opens a streaming handle to the object at key inside bucket.
	// The caller MUST call Object.Close() after reading.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// StatObject returns metadata for the object without its content.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// ListObjects returns the objects in bucket that match opts, ordered by key.
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)
}
