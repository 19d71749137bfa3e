package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	merrors "github.com/arkilian/metergen/internal/errors"
)

func TestSet_ChunksRoundRobin(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	s := NewSet(ids, Stats{Requested: 10, Accepted: 10})

	chunks := s.Chunks(3)
	want := [][]string{{"a", "d", "g", "j"}, {"b", "e", "h"}, {"c", "f", "i"}}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks", len(chunks))
	}
	total := 0
	for i := range want {
		if len(chunks[i]) != len(want[i]) {
			t.Fatalf("chunk %d = %v, want %v", i, chunks[i], want[i])
		}
		for j := range want[i] {
			if chunks[i][j] != want[i][j] {
				t.Errorf("chunk %d = %v, want %v", i, chunks[i], want[i])
			}
		}
		total += len(chunks[i])
	}
	if total != s.Len() {
		t.Errorf("chunks cover %d ids, want %d", total, s.Len())
	}
}

func TestSet_ChunksMoreThanIDs(t *testing.T) {
	s := NewSet([]string{"a", "b"}, Stats{})
	chunks := s.Chunks(8)
	if len(chunks) != 8 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if len(chunks[0]) != 1 || len(chunks[1]) != 1 || len(chunks[7]) != 0 {
		t.Errorf("unexpected distribution: %v", chunks)
	}
}

func TestSnapshot_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.snappy")
	ids, _ := NewGenerator(Options{Rand: seeded(11)}).Generate(2500)

	if err := Save(path, ids); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path, DefaultFormat)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != len(ids) {
		t.Fatalf("loaded %d ids, want %d", len(loaded), len(ids))
	}
	for i := range ids {
		if loaded[i] != ids[i] {
			t.Fatalf("id %d: got %q want %q", i, loaded[i], ids[i])
		}
	}
}

func TestSnapshot_RejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.snappy")
	if err := Save(path, []string{"MAC00000001", "MAC00000001"}); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path, DefaultFormat)
	if merrors.GetCode(err) != merrors.CodeSnapshotCorrupt {
		t.Errorf("expected SNAPSHOT_CORRUPT, got %v", err)
	}
}

func TestProvision_GeneratesThenReuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.snappy")
	opts := ProvisionOptions{
		Count:        300,
		Generator:    Options{Format: DefaultFormat, Rand: seeded(5)},
		SnapshotPath: path,
	}

	first, err := Provision(context.Background(), opts)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if first.Len() != 300 {
		t.Fatalf("Len = %d", first.Len())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}

	opts.Generator.Rand = seeded(99)
	second, err := Provision(context.Background(), opts)
	if err != nil {
		t.Fatalf("Provision (reuse): %v", err)
	}
	for i, id := range first.IDs() {
		if second.IDs()[i] != id {
			t.Fatalf("snapshot reuse changed id %d", i)
		}
	}
}

func TestProvision_NoSnapshot(t *testing.T) {
	set, err := Provision(context.Background(), ProvisionOptions{Count: 50, Generator: Options{Rand: seeded(1)}})
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if set.Len() != 50 || set.Stats().Accepted != 50 {
		t.Errorf("unexpected set: len=%d stats=%+v", set.Len(), set.Stats())
	}
}
