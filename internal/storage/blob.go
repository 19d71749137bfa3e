package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/memblob"  // mem:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver
	"gocloud.dev/gcerrors"
)

// BlobStorage implements ObjectStorage on any gocloud bucket URL.
// gs://bucket is the production target; mem:// is used in tests.
type BlobStorage struct {
	bucket *blob.Bucket
	url    string
}

// OpenBlobStorage opens the bucket at url.
func OpenBlobStorage(ctx context.Context, url string) (*BlobStorage, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", url, err)
	}
	return &BlobStorage{bucket: bucket, url: url}, nil
}

// NewBlobStorage wraps an already opened bucket.
func NewBlobStorage(bucket *blob.Bucket, url string) *BlobStorage {
	return &BlobStorage{bucket: bucket, url: url}
}

// Upload streams localPath to objectKey.
func (s *BlobStorage) Upload(ctx context.Context, localPath, objectKey string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer f.Close()

	err = s.bucket.Upload(ctx, objectKey, f, &blob.WriterOptions{
		ContentType: "application/x-ndjson",
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUploadFailed, s.URI(objectKey), err)
	}
	return nil
}

// Exists checks if an object exists.
func (s *BlobStorage) Exists(ctx context.Context, objectKey string) (bool, error) {
	return s.bucket.Exists(ctx, objectKey)
}

// List returns all keys with the given prefix.
func (s *BlobStorage) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrListFailed, prefix, err)
		}
		if obj.IsDir {
			continue
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Size returns the size of a stored object, or ErrObjectNotFound.
func (s *BlobStorage) Size(ctx context.Context, objectKey string) (int64, error) {
	attrs, err := s.bucket.Attributes(ctx, objectKey)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return 0, ErrObjectNotFound
		}
		return 0, err
	}
	return attrs.Size, nil
}

// URI returns the canonical URI for the given key.
func (s *BlobStorage) URI(objectKey string) string {
	return s.url + "/" + objectKey
}

// Close releases the bucket connection.
func (s *BlobStorage) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}

var _ ObjectStorage = (*BlobStorage)(nil)
