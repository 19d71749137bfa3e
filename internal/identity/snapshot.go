package identity

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/snappy"

	merrors "github.com/arkilian/metergen/internal/errors"
)

// Save writes ids as a snappy-framed, newline-separated file. The write goes
// to a temp file that is renamed into place, so readers never see a partial
// snapshot.
func Save(path string, ids []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	tmpPath := tmp.Name()

	w := snappy.NewBufferedWriter(tmp)
	for _, id := range ids {
		if _, err := w.Write([]byte(id + "\n")); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot written by Save. Every line must match format and
// appear once; a snapshot that violates either is rejected as corrupt.
func Load(path string, format Format) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if format.Prefix == "" && format.Digits == 0 {
		format = DefaultFormat
	}

	var ids []string
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(snappy.NewReader(f))
	for scanner.Scan() {
		id := scanner.Text()
		if !format.Matches(id) {
			return nil, merrors.New(merrors.ErrCategoryGeneration, merrors.CodeSnapshotCorrupt,
				fmt.Sprintf("line %d: %q is not a valid identifier", len(ids)+1, id))
		}
		if _, dup := seen[id]; dup {
			return nil, merrors.New(merrors.ErrCategoryGeneration, merrors.CodeSnapshotCorrupt,
				fmt.Sprintf("line %d: duplicate identifier %q", len(ids)+1, id))
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, merrors.Wrap(merrors.ErrCategoryGeneration, merrors.CodeSnapshotCorrupt, "read snapshot", err)
	}
	return ids, nil
}
