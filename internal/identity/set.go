package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Set is the immutable identifier population of a run. It is built once at
// startup and passed to every task that needs it; nothing mutates it after
// construction, so concurrent readers need no locking.
type Set struct {
	ids   []string
	stats Stats
}

// NewSet wraps ids. The slice must not be modified afterwards.
func NewSet(ids []string, stats Stats) *Set {
	return &Set{ids: ids, stats: stats}
}

// Len returns the number of identifiers.
func (s *Set) Len() int { return len(s.ids) }

// IDs returns the identifiers in generation order. Callers must not modify
// the returned slice.
func (s *Set) IDs() []string { return s.ids }

// Stats returns the generation statistics.
func (s *Set) Stats() Stats { return s.stats }

// Chunks partitions the identifiers round-robin into n disjoint slices:
// chunk i holds ids[i], ids[i+n], ids[i+2n], ...
func (s *Set) Chunks(n int) [][]string {
	if n <= 0 {
		n = 1
	}
	chunks := make([][]string, n)
	for i := range chunks {
		chunks[i] = make([]string, 0, (len(s.ids)+n-1-i)/n)
	}
	for i, id := range s.ids {
		chunks[i%n] = append(chunks[i%n], id)
	}
	return chunks
}

// ProvisionOptions controls Provision.
type ProvisionOptions struct {
	Count     int
	Generator Options

	// SnapshotPath is loaded when it exists and written after generation
	// when it does not. Empty disables snapshots.
	SnapshotPath string

	Logger *slog.Logger
}

// Provision builds the run's identifier Set, reusing a snapshot when one is
// configured and present.
func Provision(ctx context.Context, opts ProvisionOptions) (*Set, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.SnapshotPath != "" {
		ids, err := Load(opts.SnapshotPath, opts.Generator.Format)
		switch {
		case err == nil:
			logger.Info("Loaded identifier snapshot", "path", opts.SnapshotPath, "count", len(ids))
			return NewSet(ids, Stats{Requested: len(ids), Accepted: len(ids)}), nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("load identifier snapshot: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, stats := NewGenerator(opts.Generator).Generate(opts.Count)
	if err := stats.Err(); err != nil {
		logger.Warn("Identifier generation under-filled",
			"requested", stats.Requested,
			"accepted", stats.Accepted,
			"attempts", stats.Attempts,
			"fill_ratio", stats.FillRatio(),
			"error", err)
	} else {
		logger.Info("Generated identifiers", "count", stats.Accepted, "attempts", stats.Attempts)
	}

	if opts.SnapshotPath != "" {
		if err := Save(opts.SnapshotPath, ids); err != nil {
			return nil, fmt.Errorf("save identifier snapshot: %w", err)
		}
		logger.Info("Saved identifier snapshot", "path", opts.SnapshotPath)
	}

	return NewSet(ids, stats), nil
}
