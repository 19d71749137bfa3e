package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arkilian/metergen/internal/pipeline"
)

// Ledger records run outcomes in a SQLite database.
type Ledger struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex // single writer

	insertFailureStmt *sql.Stmt
}

// Open opens or creates the ledger at dbPath.
func Open(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &Ledger{db: db, dbPath: dbPath}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: failed to initialize schema: %w", err)
	}

	l.insertFailureStmt, err = db.Prepare(`
		INSERT INTO failures (run_id, stage, date, file, error, retryable, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: failed to prepare insert: %w", err)
	}
	return l, nil
}

func (l *Ledger) initSchema() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// BeginRun registers a run before any failure is recorded against it.
func (l *Ledger) BeginRun(ctx context.Context, runID, startDate, endDate string, startedAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, start_date, end_date, started_at) VALUES (?, ?, ?, ?)`,
		runID, startDate, endDate, startedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("ledger: failed to begin run %s: %w", runID, err)
	}
	return nil
}

// RecordFailure implements pipeline.FailureSink.
func (l *Ledger) RecordFailure(ctx context.Context, runID string, f pipeline.Failure) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	at := f.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := l.insertFailureStmt.ExecContext(ctx, runID, string(f.Stage), f.Date, f.File, f.Err, f.Retryable, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("ledger: failed to record failure for %s: %w", f.File, err)
	}
	return nil
}

// FinishRun stores the final counters of a run.
func (l *Ledger) FinishRun(ctx context.Context, s pipeline.Summary, finishedAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.ExecContext(ctx, `
		UPDATE runs SET
			finished_at = ?,
			files_written = ?,
			files_uploaded = ?,
			write_failures = ?,
			upload_failures = ?,
			delete_failures = ?,
			fill_ratio = ?
		WHERE run_id = ?`,
		finishedAt.UnixMilli(),
		s.FilesWritten, s.FilesUploaded,
		s.WriteFailures, s.UploadFailures, s.DeleteFailures,
		s.FillRatio, s.RunID)
	if err != nil {
		return fmt.Errorf("ledger: failed to finish run %s: %w", s.RunID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ledger: run %s not found", s.RunID)
	}
	return nil
}

// Failures returns the failures recorded for runID in insertion order.
func (l *Ledger) Failures(ctx context.Context, runID string) ([]pipeline.Failure, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT stage, date, file, error, retryable, recorded_at
		FROM failures WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to query failures: %w", err)
	}
	defer rows.Close()

	var out []pipeline.Failure
	for rows.Next() {
		var (
			f     pipeline.Failure
			stage string
			at    int64
		)
		if err := rows.Scan(&stage, &f.Date, &f.File, &f.Err, &f.Retryable, &at); err != nil {
			return nil, fmt.Errorf("ledger: failed to scan failure: %w", err)
		}
		f.Stage = pipeline.Stage(stage)
		f.At = time.UnixMilli(at)
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountByStage returns the number of failures per stage for runID.
func (l *Ledger) CountByStage(ctx context.Context, runID string) (map[pipeline.Stage]int, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT stage, COUNT(*) FROM failures WHERE run_id = ? GROUP BY stage`, runID)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to count failures: %w", err)
	}
	defer rows.Close()

	counts := make(map[pipeline.Stage]int)
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, err
		}
		counts[pipeline.Stage(stage)] = n
	}
	return counts, rows.Err()
}

// Path returns the database file path.
func (l *Ledger) Path() string { return l.dbPath }

// Close closes the database.
func (l *Ledger) Close() error {
	if l.insertFailureStmt != nil {
		l.insertFailureStmt.Close()
	}
	return l.db.Close()
}

var _ pipeline.FailureSink = (*Ledger)(nil)
