package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage implements ObjectStorage on a local directory.
// It is used for development runs and tests.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a local storage rooted at basePath.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Upload copies localPath under basePath/objectKey.
func (l *LocalStorage) Upload(ctx context.Context, localPath, objectKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	destPath := l.fullPath(objectKey)
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer src.Close()

	tmpPath := destPath + ".partial"
	dst, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return nil
}

// Exists checks if an object exists.
func (l *LocalStorage) Exists(ctx context.Context, objectKey string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(l.fullPath(objectKey))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns all object keys under prefix, slash separated.
func (l *LocalStorage) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var objects []string
	err := filepath.Walk(l.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			objects = append(objects, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListFailed, err)
	}
	return objects, nil
}

// URI returns the canonical URI for the given key.
func (l *LocalStorage) URI(objectKey string) string {
	abs, err := filepath.Abs(l.fullPath(objectKey))
	if err != nil {
		abs = l.fullPath(objectKey)
	}
	return "file://" + filepath.ToSlash(abs)
}

// Close is a no-op for local storage.
func (l *LocalStorage) Close() error { return nil }

func (l *LocalStorage) fullPath(objectKey string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(objectKey))
}

var _ ObjectStorage = (*LocalStorage)(nil)
