// Package storage provides the remote object storage backends artifacts are
// uploaded to, and the bulk upload primitive built on top of them.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/arkilian/metergen/internal/config"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrListFailed     = errors.New("list failed")
)

// ObjectStorage abstracts a single bucket.
// Implementations include S3, gocloud blob URLs (GCS, S3, memory, file) and
// a local directory for development.
type ObjectStorage interface {
	// Upload copies the local file at localPath to objectKey.
	Upload(ctx context.Context, localPath, objectKey string) error

	// Exists reports whether objectKey exists.
	Exists(ctx context.Context, objectKey string) (bool, error)

	// List returns all object keys under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// URI returns a human readable location for objectKey.
	URI(objectKey string) string

	// Close releases any resources.
	Close() error
}

// Open creates the backend selected by cfg.
func Open(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Type {
	case config.StorageLocal:
		if cfg.Path == "" {
			return nil, fmt.Errorf("storage.path required for local backend")
		}
		return NewLocalStorage(cfg.Path)
	case config.StorageS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("storage.bucket required for s3 backend")
		}
		return NewS3Storage(ctx, cfg.Bucket, S3Config{
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
	case config.StorageBlob:
		url := cfg.URL
		if url == "" && cfg.Bucket != "" {
			url = "gs://" + cfg.Bucket
		}
		if url == "" {
			return nil, fmt.Errorf("storage.url required for blob backend")
		}
		return OpenBlobStorage(ctx, url)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Type)
	}
}
