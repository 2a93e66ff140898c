// Package storage writes objects to S3, Google Cloud Storage or MinIO behind
// one interface.
package storage

import (
	"context"
	"io"
	"time"
)

// Storage is the write side of an object store.
type Storage interface {
	io.Closer

	// PutObject stores r under bucket/key and returns what the backend reported.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error)
}

// PutOptions configures an upload.
type PutOptions struct {
	// Size is the content length, -1 or 0 when unknown.
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Bucket    string
	Key       string
	Size      int64
	ETag      string
	UpdatedAt time.Time
}
