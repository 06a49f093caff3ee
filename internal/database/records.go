// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/custodia/internal/models"
)

// Query limit clamps. Callers pass whatever the request carried; the store
// enforces the band.
const (
	DefaultFileQueryLimit    = 100
	MaxFileQueryLimit        = 1000
	DefaultMachineQueryLimit = 200
	MaxMachineQueryLimit     = 5000
	DefaultNameQueryLimit    = 100
	MaxNameQueryLimit        = 1000
	DefaultGraphLimit        = 20000
	MaxGraphLimit            = 200000
)

// ClampLimit forces limit into [1, max], substituting def for zero and
// negative values.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// recordColumns is the column list shared by every file_records SELECT.
const recordColumns = `id, machine_name, machine_id, mac, host_name, tag, client_ip,
	file_path, file_name, extension, size_bytes, sha256, scan_ts, ingested_at, change_type, urn`

// InsertFileRecords appends records in one transaction. The insert is
// all-or-nothing: a failure rolls back every row so the flush worker can
// retry the whole drained slice.
func (db *DB) InsertFileRecords(ctx context.Context, records []*models.FileRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO file_records
		(machine_name, machine_id, mac, host_name, tag, client_ip,
		 file_path, file_name, extension, size_bytes, sha256, scan_ts,
		 ingested_at, change_type, urn)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer closeWithLog(stmt, "insert statement")

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			rec.MachineName, rec.MachineID, rec.MAC, rec.HostName, rec.Tag, rec.ClientIP,
			rec.FilePath, rec.FileName, rec.Extension, rec.SizeBytes, rec.SHA256, rec.ScanTS,
			rec.IngestedAt, string(rec.ChangeType), rec.URN,
		); err != nil {
			return fmt.Errorf("insert file record %s: %w", rec.SHA256, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

// RecordsBySHA256 returns all records with the given content hash in chain
// order: ingested_at first, insert id as the tie-break.
func (db *DB) RecordsBySHA256(ctx context.Context, sha256 string, limit int) ([]*models.FileRecord, error) {
	limit = ClampLimit(limit, DefaultFileQueryLimit, MaxGraphLimit)

	stmt, err := db.getStmt(ctx, `SELECT `+recordColumns+`
		FROM file_records WHERE sha256 = ?
		ORDER BY ingested_at, id
		LIMIT ?`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, sha256, limit)
	if err != nil {
		return nil, fmt.Errorf("query records by sha256: %w", err)
	}
	defer closeWithLog(rows, "result rows")

	return scanRecords(rows)
}

// RecordsByMachine returns a machine's records, most recent first,
// optionally filtered to one hash.
func (db *DB) RecordsByMachine(ctx context.Context, machineName, sha256 string, limit int) ([]*models.FileRecord, error) {
	limit = ClampLimit(limit, DefaultMachineQueryLimit, MaxMachineQueryLimit)

	query := `SELECT ` + recordColumns + ` FROM file_records WHERE machine_name = ?`
	args := []interface{}{machineName}
	if sha256 != "" {
		query += ` AND sha256 = ?`
		args = append(args, sha256)
	}
	query += ` ORDER BY ingested_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records by machine: %w", err)
	}
	defer closeWithLog(rows, "result rows")

	return scanRecords(rows)
}

// RecordsByNameSubstring returns records whose file name contains the
// fragment (case-insensitive), most recent first.
func (db *DB) RecordsByNameSubstring(ctx context.Context, fragment string, limit int) ([]*models.FileRecord, error) {
	limit = ClampLimit(limit, DefaultNameQueryLimit, MaxNameQueryLimit)

	stmt, err := db.getStmt(ctx, `SELECT `+recordColumns+`
		FROM file_records
		WHERE contains(lower(file_name), lower(?))
		ORDER BY ingested_at DESC, id DESC
		LIMIT ?`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, fragment, limit)
	if err != nil {
		return nil, fmt.Errorf("query records by name: %w", err)
	}
	defer closeWithLog(rows, "result rows")

	return scanRecords(rows)
}

// ListMachines returns the distinct machine names present in the store.
func (db *DB) ListMachines(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT machine_name FROM file_records ORDER BY machine_name`)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	defer closeWithLog(rows, "result rows")

	var machines []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan machine name: %w", err)
		}
		machines = append(machines, name)
	}
	return machines, rows.Err()
}

// LatestSHAByPath returns, for each given path on one machine, the hash of
// the most recently inserted record. Paths never observed are absent from
// the result. Used to seed the change tracker on cache misses.
func (db *DB) LatestSHAByPath(ctx context.Context, machineName string, paths []string) (map[string]string, error) {
	if len(paths) == 0 {
		return map[string]string{}, nil
	}

	query := `SELECT file_path, arg_max(sha256, id)
		FROM file_records
		WHERE machine_name = ? AND file_path IN (` + placeholders(len(paths)) + `)
		GROUP BY file_path`
	args := make([]interface{}, 0, len(paths)+1)
	args = append(args, machineName)
	for _, p := range paths {
		args = append(args, p)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query latest sha by path: %w", err)
	}
	defer closeWithLog(rows, "result rows")

	latest := make(map[string]string, len(paths))
	for rows.Next() {
		var path, sha string
		if err := rows.Scan(&path, &sha); err != nil {
			return nil, fmt.Errorf("scan latest sha: %w", err)
		}
		latest[path] = sha
	}
	return latest, rows.Err()
}

// DuplicateSHAs returns, among the given hashes, those that appear in the
// durable store under more than one distinct file name or path.
func (db *DB) DuplicateSHAs(ctx context.Context, shas []string) ([]models.DuplicateEntry, error) {
	if len(shas) == 0 {
		return nil, nil
	}

	query := `SELECT sha256, count(DISTINCT file_name), count(DISTINCT file_path)
		FROM file_records
		WHERE sha256 IN (` + placeholders(len(shas)) + `)
		GROUP BY sha256
		HAVING count(DISTINCT file_name) > 1 OR count(DISTINCT file_path) > 1
		ORDER BY sha256`
	args := make([]interface{}, len(shas))
	for i, s := range shas {
		args[i] = s
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query duplicate shas: %w", err)
	}
	defer closeWithLog(rows, "result rows")

	var dups []models.DuplicateEntry
	for rows.Next() {
		var d models.DuplicateEntry
		if err := rows.Scan(&d.SHA256, &d.DistinctFileNames, &d.DistinctFilePaths); err != nil {
			return nil, fmt.Errorf("scan duplicate entry: %w", err)
		}
		dups = append(dups, d)
	}
	return dups, rows.Err()
}

// SHACount returns how many durable records carry the given hash. A
// read-side display aggregate, never stored.
func (db *DB) SHACount(ctx context.Context, sha256 string) (int64, error) {
	stmt, err := db.getStmt(ctx, `SELECT count(*) FROM file_records WHERE sha256 = ?`)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := stmt.QueryRowContext(ctx, sha256).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sha256: %w", err)
	}
	return count, nil
}

// Stats summarizes the durable store. BufferedRecords is filled in by the
// caller from the in-memory buffer.
func (db *DB) Stats(ctx context.Context) (*models.StoreStats, error) {
	stats := &models.StoreStats{}
	err := db.conn.QueryRowContext(ctx, `SELECT count(*),
		count(DISTINCT machine_name), count(DISTINCT sha256)
		FROM file_records`).
		Scan(&stats.TotalRecords, &stats.DistinctMachines, &stats.DistinctHashes)
	if err != nil {
		return nil, fmt.Errorf("query store stats: %w", err)
	}
	return stats, nil
}

// scanRecords reads file_records rows into models.
func scanRecords(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}) ([]*models.FileRecord, error) {
	var records []*models.FileRecord
	for rows.Next() {
		rec := &models.FileRecord{}
		var changeType string
		if err := rows.Scan(
			&rec.ID, &rec.MachineName, &rec.MachineID, &rec.MAC, &rec.HostName, &rec.Tag, &rec.ClientIP,
			&rec.FilePath, &rec.FileName, &rec.Extension, &rec.SizeBytes, &rec.SHA256, &rec.ScanTS,
			&rec.IngestedAt, &changeType, &rec.URN,
		); err != nil {
			return nil, fmt.Errorf("scan file record: %w", err)
		}
		rec.ChangeType = models.ChangeType(changeType)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// placeholders renders "?, ?, ?" for n parameters.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
