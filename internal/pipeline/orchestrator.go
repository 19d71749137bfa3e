package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arkilian/metergen/internal/config"
	apperrors "github.com/arkilian/metergen/internal/errors"
	"github.com/arkilian/metergen/internal/logging"
)

// ArtifactWriter writes one entity's day of readings to path.
type ArtifactWriter interface {
	WriteArtifact(date time.Time, path string) error
}

// Options configures an Orchestrator.
type Options struct {
	// Start and End bound the inclusive date range.
	Start time.Time
	End   time.Time

	// Chunks are the disjoint identifier partitions; one task per chunk per date.
	Chunks [][]string

	// TempDir holds one subdirectory per date.
	TempDir string

	OuterWorkers int
	BatchSize    int

	// FlushRemainder uploads each task's trailing partial batch. When off,
	// those files stay on local disk.
	FlushRemainder bool
}

// Orchestrator fans (date, chunk) tasks out over a bounded outer tier.
type Orchestrator struct {
	opts       Options
	writer     ArtifactWriter
	writes     *Pool
	dispatcher *Dispatcher
	report     *Report
	logger     *slog.Logger
}

// NewOrchestrator wires the stages together. writes and dispatcher are
// shared by every task.
func NewOrchestrator(opts Options, writer ArtifactWriter, writes *Pool, dispatcher *Dispatcher, report *Report, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.OuterWorkers <= 0 {
		opts.OuterWorkers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	return &Orchestrator{
		opts:       opts,
		writer:     writer,
		writes:     writes,
		dispatcher: dispatcher,
		report:     report,
		logger:     logger.With("component", "orchestrator"),
	}
}

// Dates returns every calendar date in [start, end].
func Dates(start, end time.Time) []time.Time {
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// Run processes the whole date range. It returns after every task has
// finished and every write and upload it started has completed. Per-file
// failures are captured in the report; the only error returned is the
// context's.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	dates := Dates(o.opts.Start, o.opts.End)
	o.logger.Info("Starting run",
		"run_id", o.report.RunID,
		"dates", len(dates),
		"chunks", len(o.opts.Chunks),
		"batch_size", o.opts.BatchSize,
		"outer_workers", o.opts.OuterWorkers,
		"write_workers", o.writes.Size())

	var g errgroup.Group
	g.SetLimit(o.opts.OuterWorkers)

	for _, date := range dates {
		for i, chunk := range o.opts.Chunks {
			if len(chunk) == 0 {
				continue
			}
			g.Go(func() error {
				o.runTask(ctx, date, i, chunk)
				return nil
			})
		}
	}

	_ = g.Wait()
	o.dispatcher.Wait()
	o.writes.Wait()
	o.report.Finish()

	return o.report, ctx.Err()
}

func (o *Orchestrator) runTask(ctx context.Context, date time.Time, chunk int, ids []string) {
	day := date.Format(config.DateLayout)
	logger := logging.TaskLogger(o.logger, day, chunk)
	defer o.report.TaskDone()

	dir := filepath.Join(o.opts.TempDir, day)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("Failed to create date directory", "dir", dir, "error", err)
		o.report.TaskFailed(day, dir, apperrors.NewWriteError(dir, err))
		return
	}

	prefix := "dt=" + day
	collector := NewCollector(o.opts.BatchSize, func(names []string, handles []*Handle) {
		o.dispatcher.Dispatch(ctx, Batch{
			Date:    day,
			Dir:     dir,
			Prefix:  prefix,
			Names:   names,
			Handles: handles,
		})
	})

	for _, id := range ids {
		name := id + ".json"
		path := filepath.Join(dir, name)

		h, err := o.writes.Submit(ctx, func() error {
			if err := o.writer.WriteArtifact(date, path); err != nil {
				logger.Error("Failed to write artifact", "file", name, "error", err)
				o.report.WriteFailed(day, name, apperrors.NewWriteError(name, err))
				return err
			}
			o.report.FileWritten()
			return nil
		})
		if err != nil {
			logger.Warn("Task cancelled", "error", err)
			break
		}
		collector.Add(name, h)
	}

	if o.opts.FlushRemainder {
		collector.Drain()
	} else if pending := collector.Pending(); len(pending) > 0 {
		logger.Debug("Leaving partial batch on disk", "files", len(pending))
	}

	logger.Debug("Task complete", "files", len(ids), "batches", collector.Batches())
}
