// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

/*
Package database provides the DuckDB-backed durable store for the integrity
pipeline.

Two tables back the whole system:

  - file_records: the append-only observation log. Rows are inserted by the
    flush worker in one transaction per drain cycle and are never updated or
    deleted. Ordering among rows is the insert order (sequence id), which
    can diverge from scan_ts order under retries or clock skew.
  - auth_tokens: the machine-group to bearer-credential mapping consumed at
    ingest admission and managed by the admin CLI.

The flush worker is the only writer to file_records; queries run
concurrently against whatever is already durable.
*/
package database
