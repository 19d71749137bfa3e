package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingStorage wraps an ObjectStorage and tracks concurrent uploads.
type countingStorage struct {
	ObjectStorage
	inflight atomic.Int32
	peak     atomic.Int32
	failKeys map[string]bool
	mu       sync.Mutex
	keys     []string
}

func (c *countingStorage) Upload(ctx context.Context, localPath, objectKey string) error {
	n := c.inflight.Add(1)
	defer c.inflight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	if c.failKeys[objectKey] {
		return fmt.Errorf("%w: injected", ErrUploadFailed)
	}
	c.mu.Lock()
	c.keys = append(c.keys, objectKey)
	c.mu.Unlock()
	return c.ObjectStorage.Upload(ctx, localPath, objectKey)
}

func writeSources(t *testing.T, dir string, names []string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}\n"), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

func TestBatchUploader_UploadMany(t *testing.T) {
	local, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	store := &countingStorage{ObjectStorage: local}

	src := t.TempDir()
	names := make([]string, 20)
	for i := range names {
		names[i] = fmt.Sprintf("MAC%08d.json", i)
	}
	writeSources(t, src, names)

	results := NewBatchUploader(store).UploadMany(context.Background(), names, src, "dt=2024-01-01", 4)
	if len(results) != len(names) {
		t.Fatalf("got %d results, want %d", len(results), len(names))
	}
	for i, err := range results {
		if err != nil {
			t.Errorf("upload %s failed: %v", names[i], err)
		}
	}

	if peak := store.peak.Load(); peak > 4 {
		t.Errorf("peak concurrency %d exceeds worker limit 4", peak)
	}

	keys, err := local.List(context.Background(), "dt=2024-01-01/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != len(names) {
		t.Errorf("stored %d objects, want %d", len(keys), len(names))
	}
}

func TestBatchUploader_PartialFailure(t *testing.T) {
	local, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	store := &countingStorage{
		ObjectStorage: local,
		failKeys:      map[string]bool{"dt=2024-01-01/b.json": true},
	}

	src := t.TempDir()
	names := []string{"a.json", "b.json", "c.json"}
	writeSources(t, src, names)

	results := NewBatchUploader(store).UploadMany(context.Background(), names, src, "dt=2024-01-01", 2)

	if results[0] != nil || results[2] != nil {
		t.Errorf("unexpected failures: %v", results)
	}
	if !errors.Is(results[1], ErrUploadFailed) {
		t.Errorf("results[1] = %v, want ErrUploadFailed", results[1])
	}
}

func TestBatchUploader_MissingSourceIsPerFile(t *testing.T) {
	local, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	src := t.TempDir()
	writeSources(t, src, []string{"present.json"})

	results := NewBatchUploader(local).UploadMany(context.Background(), []string{"missing.json", "present.json"}, src, "p", 1)
	if results[0] == nil {
		t.Error("expected failure for missing source")
	}
	if results[1] != nil {
		t.Errorf("present file should upload: %v", results[1])
	}
}

func TestBatchUploader_Empty(t *testing.T) {
	local, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	if results := NewBatchUploader(local).UploadMany(context.Background(), nil, "", "p", 4); len(results) != 0 {
		t.Errorf("got %d results for empty input", len(results))
	}
}

func TestBatchUploader_CancelledContext(t *testing.T) {
	local, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	src := t.TempDir()
	writeSources(t, src, []string{"a.json"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewBatchUploader(local).UploadMany(ctx, []string{"a.json"}, src, "p", 1)
	if results[0] == nil {
		t.Error("expected failure for cancelled context")
	}
}

func TestObjectKey(t *testing.T) {
	if got := ObjectKey("dt=2024-01-01", "MAC00000001.json"); got != "dt=2024-01-01/MAC00000001.json" {
		t.Errorf("ObjectKey = %q", got)
	}
	if got := ObjectKey("", "x.json"); got != "x.json" {
		t.Errorf("ObjectKey without prefix = %q", got)
	}
}
