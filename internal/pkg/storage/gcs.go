package storage

import (
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// GCSOptions configures the Google Cloud Storage client. Without
// CredentialsJSON the client uses application default credentials.
type GCSOptions struct {
	CredentialsJSON []byte
	Endpoint        string
	UserAgent       string
	WithoutAuth     bool
}

// GCS implements Storage using Google Cloud Storage.
type GCS struct {
	client *gcs.Client
}

// NewGCS builds the client from opts.
func NewGCS(ctx context.Context, opts GCSOptions) (*GCS, error) {
	var copts []option.ClientOption
	switch {
	case opts.WithoutAuth:
		copts = append(copts, option.WithoutAuthentication())
	case len(opts.CredentialsJSON) > 0:
		creds, err := google.CredentialsFromJSON(ctx, opts.CredentialsJSON, gcs.ScopeReadWrite)
		if err != nil {
			return nil, fmt.Errorf("storage: parse gcs credentials: %w", err)
		}
		copts = append(copts, option.WithCredentials(creds))
	}
	if opts.Endpoint != "" {
		copts = append(copts, option.WithEndpoint(opts.Endpoint))
	}
	if opts.UserAgent != "" {
		copts = append(copts, option.WithUserAgent(opts.UserAgent))
	}

	client, err := gcs.NewClient(ctx, copts...)
	if err != nil {
		return nil, fmt.Errorf("storage: gcs new client: %w", err)
	}
	return &GCS{client: client}, nil
}

// PutObject streams r through an object writer. The object only becomes
// visible when the writer closes cleanly.
func (g *GCS) PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error) {
	w := g.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = opts.ContentType
	w.Metadata = opts.Metadata

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return ObjectInfo{}, fmt.Errorf("storage: gcs write %s/%s: %w", bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return ObjectInfo{}, fmt.Errorf("storage: gcs close %s/%s: %w", bucket, key, err)
	}

	info := ObjectInfo{Bucket: bucket, Key: key, Size: opts.Size}
	if attrs := w.Attrs(); attrs != nil {
		info.Size = attrs.Size
		info.ETag = attrs.Etag
		info.UpdatedAt = attrs.Updated
	}
	return info, nil
}

// Close closes the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}
