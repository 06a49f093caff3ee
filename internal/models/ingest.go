// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package models

import "time"

// IngestRequest is the authenticated batch envelope an agent posts to
// /ingest. machine_name is never part of the envelope; the server resolves
// it from the bearer token.
type IngestRequest struct {
	HostName string        `json:"host_name"`
	MAC      string        `json:"mac"`
	Tag      string        `json:"tag"`
	Records  []Observation `json:"records" validate:"required,min=1,max=30,dive"`
}

// ChangeEntry reports, in the ingest response, a path whose content hash
// differs from the previously recorded one on the same machine.
type ChangeEntry struct {
	FilePath       string `json:"file_path"`
	PreviousSHA256 string `json:"previous_sha256"`
	NewSHA256      string `json:"new_sha256"`
}

// DuplicateEntry reports a hash that appears under more than one file name
// or path anywhere in the durable store. Derived from durable rows only, so
// it can lag records still sitting in the ingest buffer.
type DuplicateEntry struct {
	SHA256            string `json:"sha256"`
	DistinctFileNames int64  `json:"distinct_file_names"`
	DistinctFilePaths int64  `json:"distinct_file_paths"`
}

// IngestResult acknowledges admission of a batch. Admission means queued,
// not yet durable.
type IngestResult struct {
	Inserted   int              `json:"inserted"`
	Changed    []ChangeEntry    `json:"changed"`
	Duplicates []DuplicateEntry `json:"duplicates"`
}

// AdmissionEvent is published on the in-process event bus for every admitted
// batch and fanned out to live-feed subscribers.
type AdmissionEvent struct {
	MachineName string    `json:"machine_name"`
	Records     int       `json:"records"`
	Changed     int       `json:"changed"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// StoreStats summarizes the durable store plus the in-memory buffer lag,
// served by /api/stats.
type StoreStats struct {
	TotalRecords     int64 `json:"total_records"`
	DistinctMachines int64 `json:"distinct_machines"`
	DistinctHashes   int64 `json:"distinct_hashes"`
	BufferedRecords  int   `json:"buffered_records"`
}

// TokenInfo is one row of the token-credential mapping, as listed by the
// admin CLI.
type TokenInfo struct {
	MachineID   int64  `json:"machine_id"`
	MachineName string `json:"machine_name"`
	Token       string `json:"token"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}
