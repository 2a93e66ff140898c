package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOOptions configures the MinIO client.
type MinIOOptions struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	SessionToken string
	Region       string
	UseSSL       bool
}

// MinIO implements Storage using a MinIO server.
type MinIO struct {
	client *minio.Client
}

// NewMinIO builds the client; no request is made until the first upload.
func NewMinIO(opts MinIOOptions) (*MinIO, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, opts.SessionToken),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: minio new client: %w", err)
	}
	return &MinIO{client: client}, nil
}

// PutObject uploads r. A non-positive size makes minio buffer in parts.
func (m *MinIO) PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error) {
	size := opts.Size
	if size <= 0 {
		size = -1
	}

	info, err := m.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("storage: minio put %s/%s: %w", bucket, key, err)
	}

	return ObjectInfo{
		Bucket:    bucket,
		Key:       key,
		Size:      info.Size,
		ETag:      info.ETag,
		UpdatedAt: info.LastModified,
	}, nil
}

// Close is a no-op for MinIO.
func (*MinIO) Close() error { return nil }
