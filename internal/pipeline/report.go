package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/arkilian/metergen/internal/errors"
)

// Stage names the pipeline step a failure happened in.
type Stage string

const (
	StageTask    Stage = "task"
	StageWrite   Stage = "write"
	StageUpload  Stage = "upload"
	StageCleanup Stage = "cleanup"
)

// maxRetainedFailures caps the failures kept in memory. Counters and the
// sink still see every failure.
const maxRetainedFailures = 1000

// Failure is one per-file failure.
type Failure struct {
	Stage     Stage
	Date      string
	File      string
	Err       string
	Retryable bool
	At        time.Time
}

// FailureSink persists failures outside the process.
type FailureSink interface {
	RecordFailure(ctx context.Context, runID string, f Failure) error
}

// Report aggregates the outcome of a run. All methods are safe for
// concurrent use.
type Report struct {
	RunID   string
	Started time.Time

	IdentifiersRequested int
	IdentifiersAccepted  int

	tasks          atomic.Int64
	filesWritten   atomic.Int64
	writeFailures  atomic.Int64
	batches        atomic.Int64
	filesUploaded  atomic.Int64
	uploadFailures atomic.Int64
	filesDeleted   atomic.Int64
	deleteFailures atomic.Int64
	sinkErrors     atomic.Int64

	mu       sync.Mutex
	failures []Failure
	finished time.Time

	sink   FailureSink
	logger *slog.Logger
}

// NewReport creates a report with a fresh run ID. sink may be nil.
func NewReport(sink FailureSink, logger *slog.Logger) *Report {
	if logger == nil {
		logger = slog.Default()
	}
	return &Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		sink:    sink,
		logger:  logger,
	}
}

// SetIdentifiers records how many identifiers were requested and accepted.
func (r *Report) SetIdentifiers(requested, accepted int) {
	r.IdentifiersRequested = requested
	r.IdentifiersAccepted = accepted
}

// TaskDone counts a finished (date, chunk) task.
func (r *Report) TaskDone() { r.tasks.Add(1) }

// FileWritten counts a successfully written artifact.
func (r *Report) FileWritten() {
	r.filesWritten.Add(1)
	recordCounter(filesWritten, 1)
}

// WriteFailed records a failed artifact write.
func (r *Report) WriteFailed(date, file string, err error) {
	r.writeFailures.Add(1)
	recordCounter(writeErrors, 1)
	r.fail(StageWrite, date, file, err)
}

// BatchDispatched counts a bulk upload call.
func (r *Report) BatchDispatched() {
	r.batches.Add(1)
	recordCounter(batchesUploaded, 1)
}

// FilesUploaded counts n successful uploads.
func (r *Report) FilesUploaded(n int) {
	r.filesUploaded.Add(int64(n))
	recordCounter(filesUploaded, n)
}

// UploadFailed records a failed upload.
func (r *Report) UploadFailed(date, file string, err error) {
	r.uploadFailures.Add(1)
	recordCounter(uploadErrors, 1)
	r.fail(StageUpload, date, file, err)
}

// FilesDeleted counts n removed local files.
func (r *Report) FilesDeleted(n int) {
	r.filesDeleted.Add(int64(n))
	recordCounter(filesDeleted, n)
}

// DeleteFailed records a local file that could not be removed.
func (r *Report) DeleteFailed(date, file string, err error) {
	r.deleteFailures.Add(1)
	r.fail(StageCleanup, date, file, err)
}

// TaskFailed records a task-level failure such as a directory that could
// not be created.
func (r *Report) TaskFailed(date, target string, err error) {
	r.fail(StageTask, date, target, err)
}

func (r *Report) fail(stage Stage, date, file string, err error) {
	f := Failure{Stage: stage, Date: date, File: file, At: time.Now()}
	if err != nil {
		f.Err = err.Error()
		f.Retryable = apperrors.IsRetryable(err)
	}

	r.mu.Lock()
	if len(r.failures) < maxRetainedFailures {
		r.failures = append(r.failures, f)
	}
	r.mu.Unlock()

	if r.sink != nil {
		if sinkErr := r.sink.RecordFailure(context.Background(), r.RunID, f); sinkErr != nil {
			r.sinkErrors.Add(1)
			r.logger.Warn("Failed to record failure", "stage", stage, "file", file, "error", sinkErr)
		}
	}
}

// Failures returns a copy of the retained failures.
func (r *Report) Failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Failure, len(r.failures))
	copy(out, r.failures)
	return out
}

// Finish stamps the end of the run.
func (r *Report) Finish() {
	r.mu.Lock()
	r.finished = time.Now()
	r.mu.Unlock()
}

// Summary is a point-in-time snapshot of a Report.
type Summary struct {
	RunID          string
	Duration       time.Duration
	FillRatio      float64
	Tasks          int64
	FilesWritten   int64
	WriteFailures  int64
	Batches        int64
	FilesUploaded  int64
	UploadFailures int64
	FilesDeleted   int64
	DeleteFailures int64
	SinkErrors     int64
}

// Summary returns the current counters.
func (r *Report) Summary() Summary {
	r.mu.Lock()
	end := r.finished
	r.mu.Unlock()
	if end.IsZero() {
		end = time.Now()
	}

	fill := 1.0
	if r.IdentifiersRequested > 0 {
		fill = float64(r.IdentifiersAccepted) / float64(r.IdentifiersRequested)
	}

	return Summary{
		RunID:          r.RunID,
		Duration:       end.Sub(r.Started),
		FillRatio:      fill,
		Tasks:          r.tasks.Load(),
		FilesWritten:   r.filesWritten.Load(),
		WriteFailures:  r.writeFailures.Load(),
		Batches:        r.batches.Load(),
		FilesUploaded:  r.filesUploaded.Load(),
		UploadFailures: r.uploadFailures.Load(),
		FilesDeleted:   r.filesDeleted.Load(),
		DeleteFailures: r.deleteFailures.Load(),
		SinkErrors:     r.sinkErrors.Load(),
	}
}

// Failed reports whether any file failed at any stage.
func (s Summary) Failed() bool {
	return s.WriteFailures+s.UploadFailures+s.DeleteFailures > 0
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", s.RunID),
		slog.Duration("duration", s.Duration),
		slog.Float64("fill_ratio", s.FillRatio),
		slog.Int64("tasks", s.Tasks),
		slog.Int64("files_written", s.FilesWritten),
		slog.Int64("write_failures", s.WriteFailures),
		slog.Int64("batches", s.Batches),
		slog.Int64("files_uploaded", s.FilesUploaded),
		slog.Int64("upload_failures", s.UploadFailures),
		slog.Int64("files_deleted", s.FilesDeleted),
		slog.Int64("delete_failures", s.DeleteFailures),
	)
}
