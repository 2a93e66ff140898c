package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromDriver_Unknown(t *testing.T) {
	_, err := NewFromDriver(context.Background(), "ftp", FactoryOptions{})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestNewFromDriver_MinIO(t *testing.T) {
	// Arrange
	opts := FactoryOptions{MinIO: MinIOOptions{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
	}}

	// Act
	stg, err := NewFromDriver(context.Background(), " MinIO ", opts)

	// Assert
	require.NoError(t, err)
	assert.IsType(t, &MinIO{}, stg)
	assert.NoError(t, stg.Close())
}

func TestNewFromDriver_S3StaticCredentials(t *testing.T) {
	opts := FactoryOptions{S3: S3Options{
		Endpoint:     "http://localhost:4566",
		AccessKey:    "test",
		SecretKey:    "test",
		UsePathStyle: true,
	}}

	stg, err := NewFromDriver(context.Background(), DriverS3, opts)

	require.NoError(t, err)
	assert.IsType(t, &S3{}, stg)
}

func TestNewGCS_BadCredentials(t *testing.T) {
	_, err := NewGCS(context.Background(), GCSOptions{CredentialsJSON: []byte("{not json")})
	assert.Error(t, err)
}
