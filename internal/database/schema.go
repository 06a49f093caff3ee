// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package database

import (
	"context"
	"fmt"
)

// schemaStatements returns the DDL executed at startup, in order. All
// statements are idempotent so restarts are safe.
func schemaStatements() []string {
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS file_records_id_seq`,

		// The append-only observation log. id is the total order the
		// history chain ties on; scan_ts is display-only because agent
		// clocks skew.
		`CREATE TABLE IF NOT EXISTS file_records (
			id           BIGINT PRIMARY KEY DEFAULT nextval('file_records_id_seq'),
			machine_name VARCHAR NOT NULL,
			machine_id   BIGINT,
			mac          VARCHAR,
			host_name    VARCHAR,
			tag          VARCHAR,
			client_ip    VARCHAR,
			file_path    VARCHAR NOT NULL,
			file_name    VARCHAR NOT NULL,
			extension    VARCHAR,
			size_bytes   BIGINT NOT NULL,
			sha256       VARCHAR NOT NULL,
			scan_ts      VARCHAR NOT NULL,
			ingested_at  TIMESTAMP NOT NULL,
			change_type  VARCHAR,
			urn          VARCHAR NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_file_records_sha256
			ON file_records (sha256)`,
		`CREATE INDEX IF NOT EXISTS idx_file_records_machine_ingested
			ON file_records (machine_name, ingested_at)`,
		`CREATE INDEX IF NOT EXISTS idx_file_records_machine_path
			ON file_records (machine_name, file_path)`,

		`CREATE SEQUENCE IF NOT EXISTS auth_tokens_id_seq`,

		`CREATE TABLE IF NOT EXISTS auth_tokens (
			machine_id   BIGINT PRIMARY KEY DEFAULT nextval('auth_tokens_id_seq'),
			machine_name VARCHAR NOT NULL UNIQUE,
			token        VARCHAR NOT NULL UNIQUE,
			created_at   TIMESTAMP NOT NULL,
			updated_at   TIMESTAMP NOT NULL
		)`,
	}
}

// createSchema runs all schema statements with a startup timeout.
func (db *DB) createSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()

	for _, stmt := range schemaStatements() {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}
