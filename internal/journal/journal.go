// Package journal records every chat exchange in SQLite. The default DSN is
// an in-memory database, so nothing outlives the process.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryDSN keeps the journal for the life of the process only
const MemoryDSN = ":memory:"

// Outcome of an exchange
const (
	OutcomeReply   = "reply"
	OutcomeReceipt = "receipt"
	OutcomeEmpty   = "empty"
	OutcomeFailed  = "failed"
)

// Entry is one completed exchange
type Entry struct {
	ID         string
	ThreadID   string
	Mode       string
	Query      string
	Attachment string
	Outcome    string
	Latency    time.Duration
	CreatedAt  time.Time
}

// Summary aggregates the journal for display
type Summary struct {
	Exchanges   int
	Failures    int
	Receipts    int
	Threads     int
	MeanLatency time.Duration
}

// Journal is a SQLite-backed exchange log
type Journal struct {
	db *sql.DB
}

// Open opens the journal database and creates its schema
func Open(dsn string) (*Journal, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	createExchangesTable := `
	CREATE TABLE IF NOT EXISTS exchanges (
		id TEXT PRIMARY KEY,
		thread_id TEXT,
		mode TEXT,
		query TEXT,
		attachment TEXT,
		outcome TEXT,
		latency_ms INTEGER,
		created_at DATETIME
	);`

	if _, err := db.Exec(createExchangesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create exchanges table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record stores a completed exchange
func (j *Journal) Record(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO exchanges (id, thread_id, mode, query, attachment, outcome, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ThreadID, e.Mode, e.Query, e.Attachment, e.Outcome, e.Latency.Milliseconds(), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record exchange: %w", err)
	}
	return nil
}

// Recent returns up to limit exchanges, newest first
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, thread_id, mode, query, attachment, outcome, latency_ms, created_at
		 FROM exchanges ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load exchanges: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var latencyMS int64
		if err := rows.Scan(&e.ID, &e.ThreadID, &e.Mode, &e.Query, &e.Attachment, &e.Outcome, &latencyMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		e.Latency = time.Duration(latencyMS) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exchanges: %w", err)
	}
	return entries, nil
}

// Summarize aggregates every recorded exchange
func (j *Journal) Summarize(ctx context.Context) (Summary, error) {
	var s Summary
	var mean sql.NullFloat64
	err := j.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
		       COUNT(DISTINCT NULLIF(thread_id, '')),
		       AVG(latency_ms)
		FROM exchanges`, OutcomeFailed, OutcomeReceipt).
		Scan(&s.Exchanges, &s.Failures, &s.Receipts, &s.Threads, &mean)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to summarize exchanges: %w", err)
	}
	if mean.Valid {
		s.MeanLatency = time.Duration(mean.Float64 * float64(time.Millisecond))
	}
	return s, nil
}

// Close closes the underlying database
func (j *Journal) Close() error {
	return j.db.Close()
}
