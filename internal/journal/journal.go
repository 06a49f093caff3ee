// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package journal keeps the agent's local record of batch upload attempts
// in a SQLite file. It is diagnostic data: journal failures are logged by
// callers and never fail a run.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome values recorded per attempt.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// BatchAttempt is one journal row.
type BatchAttempt struct {
	ID       int64  `json:"id"`
	At       string `json:"at"`
	Records  int    `json:"records"`
	Bytes    int64  `json:"bytes"`
	Outcome  string `json:"outcome"`
	Detail   string `json:"detail,omitempty"`
	Schedule string `json:"schedule,omitempty"`
}

// Journal is the attempt log.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal file.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// SQLite serializes writers; one connection avoids lock contention.
	db.SetMaxOpenConns(1)

	const schema = `
		CREATE TABLE IF NOT EXISTS batch_attempts (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			at       TEXT NOT NULL,
			records  INTEGER NOT NULL,
			bytes    INTEGER NOT NULL,
			outcome  TEXT NOT NULL,
			detail   TEXT NOT NULL DEFAULT '',
			schedule TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_batch_attempts_at ON batch_attempts(at);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record appends one attempt.
func (j *Journal) Record(ctx context.Context, attempt BatchAttempt) error {
	if attempt.At == "" {
		attempt.At = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO batch_attempts (at, records, bytes, outcome, detail, schedule)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		attempt.At, attempt.Records, attempt.Bytes, attempt.Outcome, attempt.Detail, attempt.Schedule)
	if err != nil {
		return fmt.Errorf("record batch attempt: %w", err)
	}
	return nil
}

// Recent returns the newest attempts, most recent first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]BatchAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, at, records, bytes, outcome, detail, schedule
		 FROM batch_attempts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var attempts []BatchAttempt
	for rows.Next() {
		var a BatchAttempt
		if err := rows.Scan(&a.ID, &a.At, &a.Records, &a.Bytes, &a.Outcome, &a.Detail, &a.Schedule); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}
	return attempts, nil
}

// Close closes the journal file.
func (j *Journal) Close() error {
	return j.db.Close()
}
