// Package history provides a SQLite-backed log of completed scans. It only
// consumes scan results; the scanning core never reads from it.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ferrix/tagscan/internal/scanner"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	scanned_at    DATETIME NOT NULL,
	files_scanned INTEGER NOT NULL,
	total_items   INTEGER NOT NULL,
	tag_counts    TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_runs_scanned_at ON runs(scanned_at);
`

// DB wraps a sql.DB with history-specific operations.
type DB struct {
	conn *sql.DB
}

// Run is one recorded scan.
type Run struct {
	ID           int64          `json:"id"`
	ScannedAt    time.Time      `json:"scanned_at"`
	FilesScanned int            `json:"files_scanned"`
	TotalItems   int            `json:"total_items"`
	TagCounts    map[string]int `json:"tag_counts"`
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// RecordScan appends one row summarizing a completed scan.
func (db *DB) RecordScan(res *scanner.Result, at time.Time) error {
	counts := make(map[string]int)
	for _, it := range res.Items {
		counts[it.Tag]++
	}
	countsJSON, _ := json.Marshal(counts)

	_, err := db.conn.Exec(`
		INSERT INTO runs (scanned_at, files_scanned, total_items, tag_counts)
		VALUES (?, ?, ?, ?)
	`, at, res.FilesScanned, len(res.Items), string(countsJSON))
	if err != nil {
		return fmt.Errorf("history: record scan: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, scanned_at, files_scanned, total_items, tag_counts
		FROM runs ORDER BY scanned_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var countsJSON string
		if err := rows.Scan(&r.ID, &r.ScannedAt, &r.FilesScanned, &r.TotalItems, &countsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(countsJSON), &r.TagCounts); err != nil {
			r.TagCounts = map[string]int{}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
