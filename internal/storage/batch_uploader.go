package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"
)

// BatchUploader coordinates parallel uploads of local files to object storage.
type BatchUploader struct {
	storage ObjectStorage
}

// NewBatchUploader creates a new batch uploader on storage.
func NewBatchUploader(storage ObjectStorage) *BatchUploader {
	return &BatchUploader{storage: storage}
}

// Storage returns the backend uploads go to.
func (b *BatchUploader) Storage() ObjectStorage {
	return b.storage
}

// ObjectKey returns the destination key for name under prefix.
func ObjectKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// UploadMany uploads each of names from sourceDir to prefix/name, with at most
// workers uploads in flight. The result slice is aligned with names: entry i
// is nil when names[i] was uploaded and the failure otherwise. One failure
// never stops the others.
func (b *BatchUploader) UploadMany(ctx context.Context, names []string, sourceDir, prefix string, workers int) []error {
	results := make([]error, len(names))
	if len(names) == 0 {
		return results
	}
	if workers <= 0 {
		workers = 1
	}

	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup

	for i, name := range names {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = fmt.Errorf("semaphore acquire failed: %w", err)
			continue
		}

		wg.Add(1)
		go func(i int, name string) {
			defer sem.Release(1)
			defer wg.Done()

			local := filepath.Join(sourceDir, name)
			if err := b.storage.Upload(ctx, local, ObjectKey(prefix, name)); err != nil {
				results[i] = err
			}
		}(i, name)
	}

	wg.Wait()
	return results
}
