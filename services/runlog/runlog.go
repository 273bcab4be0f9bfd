package runlog

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"stockwatch_backend/services/alertcheck"

	_ "github.com/mattn/go-sqlite3"
)

// Default ledger file path
const DefaultLedgerFile = "data/runlog.db"

// Entry is one persisted run summary.
type Entry struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
	Checked    int       `json:"checked"`
	Triggered  int       `json:"triggered"`
	Notified   int       `json:"notified"`
	Error      string    `json:"error,omitempty"`
}

// Ledger keeps a local history of monitoring runs in sqlite, backing the
// status endpoint. Writes are best-effort: a ledger failure is logged but
// never fails the run.
type Ledger struct {
	db *sql.DB
}

// Open opens (and creates if needed) the run ledger at path. An empty path
// uses the default file.
func Open(path string) (*Ledger, error) {
	if path == "" {
		path = DefaultLedgerFile
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run ledger: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS run_log (
		run_id      TEXT PRIMARY KEY,
		started_at  DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		checked     INTEGER NOT NULL,
		triggered   INTEGER NOT NULL,
		notified    INTEGER NOT NULL,
		error       TEXT NOT NULL DEFAULT ''
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create run_log table: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Record persists one run summary. Best-effort; the outcome is logged.
func (l *Ledger) Record(result *alertcheck.RunResult, runErr error) {
	if l == nil || result == nil {
		return
	}

	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	_, err := l.db.Exec(
		`INSERT INTO run_log (run_id, started_at, duration_ms, checked, triggered, notified, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		result.StartedAt.UTC(),
		result.Duration.Milliseconds(),
		result.Checked,
		result.Triggered,
		result.Notified,
		errText,
	)
	if err != nil {
		log.Printf("Failed to record run %s in ledger: %v", result.RunID, err)
	}
}

// Recent returns the most recent run entries, newest first.
func (l *Ledger) Recent(limit int) ([]Entry, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	rows, err := l.db.Query(
		`SELECT run_id, started_at, duration_ms, checked, triggered, notified, error
		 FROM run_log ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run ledger: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RunID, &e.StartedAt, &e.DurationMs, &e.Checked, &e.Triggered, &e.Notified, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the ledger database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
