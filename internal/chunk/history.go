package chunk

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	input_path TEXT NOT NULL,
	encoder TEXT NOT NULL,
	total_frames INTEGER NOT NULL DEFAULT 0,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	outcome TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Outcome is the terminal status of one recorded run.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeFailed      Outcome = "failed"
	OutcomeInterrupted Outcome = "interrupted"
)

// HistoryRecord is one completed run, written once at job end.
type HistoryRecord struct {
	ID          string
	InputPath   string
	Encoder     string
	TotalFrames uint64
	ChunkCount  int
	Outcome     Outcome
	StartedAt   time.Time
	FinishedAt  time.Time
}

// History is the append-only run log kept in the sqlite file named by the
// CLI's --history-db flag. Opening it
// is optional; a run that never calls OpenHistory simply has no queryable
// past.
type History struct {
	db *sql.DB
}

// OpenHistory opens (creating if absent) the history database at path.
func OpenHistory(path string) (*History, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &History{db: db}, nil
}

// NewRunID mints a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Record writes one completed run. Called once at job end, never updated.
func (h *History) Record(r HistoryRecord) error {
	_, err := h.db.Exec(
		`INSERT OR REPLACE INTO runs (id, input_path, encoder, total_frames, chunk_count, outcome, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.InputPath, r.Encoder, r.TotalFrames, r.ChunkCount, string(r.Outcome),
		r.StartedAt.UTC().Format(time.RFC3339), r.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record run history: %w", err)
	}
	return nil
}

// Recent returns the n most recently started runs, newest first.
func (h *History) Recent(n int) ([]HistoryRecord, error) {
	rows, err := h.db.Query(
		`SELECT id, input_path, encoder, total_frames, chunk_count, outcome, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var r HistoryRecord
		var outcome, startedAt, finishedAt string
		if err := rows.Scan(&r.ID, &r.InputPath, &r.Encoder, &r.TotalFrames, &r.ChunkCount, &outcome, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		r.Outcome = Outcome(outcome)
		r.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		r.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database connection.
func (h *History) Close() error {
	return h.db.Close()
}
