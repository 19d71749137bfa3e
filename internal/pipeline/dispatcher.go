package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"

	apperrors "github.com/arkilian/metergen/internal/errors"
)

// BulkUploader uploads many local files from sourceDir under prefix.
// The returned slice is aligned with names; a nil entry means success.
type BulkUploader interface {
	UploadMany(ctx context.Context, names []string, sourceDir, prefix string, workers int) []error
}

// Batch is one unit of upload work.
type Batch struct {
	Date    string
	Dir     string
	Prefix  string
	Names   []string
	Handles []*Handle
}

// Dispatcher uploads batches on a shared upload Pool and cleans up after
// each one.
type Dispatcher struct {
	uploader BulkUploader
	pool     *Pool
	workers  int
	report   *Report
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher. workers is the per-batch hint passed to
// the bulk upload.
func NewDispatcher(uploader BulkUploader, pool *Pool, workers int, report *Report, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		uploader: uploader,
		pool:     pool,
		workers:  workers,
		report:   report,
		logger:   logger.With("component", "dispatcher"),
	}
}

// Dispatch queues b for upload. It blocks while the upload pool is
// saturated. If ctx ends first the batch is not uploaded, but its writes are
// still awaited and its files still cleaned up.
func (d *Dispatcher) Dispatch(ctx context.Context, b Batch) {
	d.wg.Add(1)
	_, err := d.pool.Submit(ctx, func() error {
		defer d.wg.Done()
		d.process(ctx, b)
		return nil
	})
	if err != nil {
		defer d.wg.Done()
		d.abandon(b, err)
	}
}

// Wait blocks until every dispatched batch has been uploaded and cleaned up.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) process(ctx context.Context, b Batch) {
	logger := d.logger.With("date", b.Date)

	written := d.awaitWrites(b)

	if len(written) > 0 {
		results := d.uploader.UploadMany(ctx, written, b.Dir, b.Prefix, d.workers)
		d.report.BatchDispatched()

		uploaded := 0
		for i, err := range results {
			if err == nil {
				uploaded++
				continue
			}
			logger.Error("Upload failed", "file", written[i], "error", err)
			d.report.UploadFailed(b.Date, written[i], apperrors.NewUploadError(written[i], err))
		}
		d.report.FilesUploaded(uploaded)
		logger.Debug("Batch uploaded",
			"prefix", b.Prefix,
			"files", len(written),
			"uploaded", uploaded)
	}

	d.cleanup(logger, b)
}

func (d *Dispatcher) abandon(b Batch, cause error) {
	logger := d.logger.With("date", b.Date)
	written := d.awaitWrites(b)
	for _, name := range written {
		d.report.UploadFailed(b.Date, name, apperrors.NewUploadError(name, cause))
	}
	logger.Error("Batch not uploaded", "files", len(written), "error", cause)
	d.cleanup(logger, b)
}

// awaitWrites blocks until every write in b has resolved and returns the
// names whose write succeeded. Failed writes were already reported by the
// write job.
func (d *Dispatcher) awaitWrites(b Batch) []string {
	written := make([]string, 0, len(b.Names))
	for i, name := range b.Names {
		if b.Handles[i].Wait() == nil {
			written = append(written, name)
		}
	}
	return written
}

// cleanup removes every file named in the batch, uploaded or not.
func (d *Dispatcher) cleanup(logger *slog.Logger, b Batch) {
	removed, err := Cleanup(b.Dir, b.Names)
	d.report.FilesDeleted(removed)
	if err == nil {
		return
	}

	var merr *multierror.Error
	if !errors.As(err, &merr) {
		logger.Warn("Cleanup failed", "error", err)
		return
	}
	for _, e := range merr.Errors {
		var fe *FileError
		if errors.As(e, &fe) {
			logger.Warn("Failed to remove local file", "file", fe.File, "error", fe.Err)
			d.report.DeleteFailed(b.Date, fe.File, fe.Err)
		}
	}
}
