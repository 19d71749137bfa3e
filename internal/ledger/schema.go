// Package ledger persists per-file failures of generation runs in SQLite so
// they can be inspected or replayed after the process exits.
package ledger

// CreateRunsTableSQL creates the table holding one row per run.
const CreateRunsTableSQL = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    started_at INTEGER NOT NULL,
    finished_at INTEGER,
    files_written INTEGER NOT NULL DEFAULT 0,
    files_uploaded INTEGER NOT NULL DEFAULT 0,
    write_failures INTEGER NOT NULL DEFAULT 0,
    upload_failures INTEGER NOT NULL DEFAULT 0,
    delete_failures INTEGER NOT NULL DEFAULT 0,
    fill_ratio REAL
)`

// CreateFailuresTableSQL creates the per-file failure table.
const CreateFailuresTableSQL = `
CREATE TABLE IF NOT EXISTS failures (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    stage TEXT NOT NULL,
    date TEXT NOT NULL,
    file TEXT NOT NULL,
    error TEXT NOT NULL,
    retryable INTEGER NOT NULL DEFAULT 0,
    recorded_at INTEGER NOT NULL
)`

// CreateFailuresIndexesSQL indexes failures for per-run and per-date lookups.
var CreateFailuresIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id, stage)`,
	`CREATE INDEX IF NOT EXISTS idx_failures_date ON failures(date, file)`,
}

// AllSchemaSQL returns all schema statements in execution order.
func AllSchemaSQL() []string {
	stmts := []string{CreateRunsTableSQL, CreateFailuresTableSQL}
	return append(stmts, CreateFailuresIndexesSQL...)
}
