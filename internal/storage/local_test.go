package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestLocalStorage_UploadExistsList(t *testing.T) {
	baseDir := t.TempDir()
	storage, err := NewLocalStorage(baseDir)
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "MAC00000001.json")
	content := []byte(`{"timestamp":"2024-01-01T00:00:00","reading":0.1}` + "\n")
	if err := os.WriteFile(srcPath, content, 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	ctx := context.Background()

	key := "dt=2024-01-01/MAC00000001.json"
	if err := storage.Upload(ctx, srcPath, key); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	exists, err := storage.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	stored, err := os.ReadFile(filepath.Join(baseDir, "dt=2024-01-01", "MAC00000001.json"))
	if err != nil {
		t.Fatalf("failed to read stored object: %v", err)
	}
	if string(stored) != string(content) {
		t.Errorf("content mismatch: got %q, want %q", stored, content)
	}

	// Source is left in place; cleanup is the caller's job.
	if _, err := os.Stat(srcPath); err != nil {
		t.Errorf("source should remain after upload: %v", err)
	}

	keys, err := storage.List(ctx, "dt=2024-01-01/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != key {
		t.Errorf("List = %v, want [%s]", keys, key)
	}
}

func TestLocalStorage_UploadMissingSource(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	err = storage.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.json"), "dt=2024-01-01/missing.json")
	if err == nil {
		t.Fatal("expected error uploading a missing file")
	}

	exists, _ := storage.Exists(context.Background(), "dt=2024-01-01/missing.json")
	if exists {
		t.Error("failed upload must not leave an object behind")
	}
}

func TestLocalStorage_ExistsNonExistent(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	exists, err := storage.Exists(context.Background(), "nonexistent/object.json")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected object to not exist")
	}
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := storage.Upload(ctx, "whatever", "key"); err == nil {
		t.Error("expected error for cancelled context")
	}
	if _, err := storage.List(ctx, ""); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestLocalStorage_ListPrefix(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	src := filepath.Join(t.TempDir(), "a.json")
	if err := os.WriteFile(src, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for _, key := range []string{"dt=2024-01-01/a.json", "dt=2024-01-01/b.json", "dt=2024-01-02/a.json"} {
		if err := storage.Upload(ctx, src, key); err != nil {
			t.Fatalf("Upload %s failed: %v", key, err)
		}
	}

	keys, err := storage.List(ctx, "dt=2024-01-01/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	sort.Strings(keys)
	want := []string{"dt=2024-01-01/a.json", "dt=2024-01-01/b.json"}
	if len(keys) != len(want) {
		t.Fatalf("List = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %s, want %s", i, keys[i], want[i])
		}
	}
}
