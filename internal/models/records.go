// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package models defines the shared data model of the integrity pipeline:
// the Observation produced by agents, the FileRecord persisted by the server,
// and the API envelope types used by every HTTP endpoint.
package models

import (
	"fmt"
	"strings"
	"time"
)

// ChangeType classifies a record at admission relative to the last known
// content of the same (machine, path).
type ChangeType string

const (
	// ChangeNew marks the first observation of a path on a machine.
	ChangeNew ChangeType = "new"
	// ChangeChanged marks an observation whose hash differs from the
	// previous one for the same path.
	ChangeChanged ChangeType = "changed"
	// ChangeUnchanged marks an observation whose hash matches the previous
	// one for the same path.
	ChangeUnchanged ChangeType = "unchanged"
)

// Observation is one agent-side record of a file's content hash at a point
// in time. It is immutable once created: one Observation corresponds to
// exactly one successfully completed hash of one file at one instant.
type Observation struct {
	FilePath  string `json:"file_path" validate:"required"`
	FileName  string `json:"file_name" validate:"required"`
	Extension string `json:"extension"`
	SizeBytes int64  `json:"size_bytes" validate:"min=0"`
	SHA256    string `json:"sha256" validate:"required,sha256hex"`
	ScanTS    string `json:"scan_ts" validate:"required,tzoffset"`
}

// FileRecord is a durable, server-enriched Observation. Records are
// append-only: ordering among them is the insert order (ID), which can
// diverge from scan_ts order under retries or clock skew.
type FileRecord struct {
	ID          int64      `json:"id,omitempty"`
	MachineName string     `json:"machine_name"`
	MachineID   int64      `json:"machine_id,omitempty"`
	MAC         string     `json:"mac,omitempty"`
	HostName    string     `json:"host_name,omitempty"`
	Tag         string     `json:"tag,omitempty"`
	ClientIP    string     `json:"client_ip,omitempty"`
	FilePath    string     `json:"file_path"`
	FileName    string     `json:"file_name"`
	Extension   string     `json:"extension"`
	SizeBytes   int64      `json:"size_bytes"`
	SizeHuman   string     `json:"size_human,omitempty"`
	SHA256      string     `json:"sha256"`
	SHA256Count int64      `json:"sha256_count,omitempty"`
	ScanTS      string     `json:"scan_ts"`
	IngestedAt  time.Time  `json:"ingested_at"`
	ChangeType  ChangeType `json:"change_type,omitempty"`
	URN         string     `json:"urn"`
}

// gibibyte is the size unit the URN size class is expressed in.
const gibibyte = int64(1) << 30

// CeilGB returns the size in gigabytes rounded up to the nearest integer.
// Zero and negative sizes map to 0.
func CeilGB(sizeBytes int64) int64 {
	if sizeBytes <= 0 {
		return 0
	}
	return (sizeBytes + gibibyte - 1) / gibibyte
}

// MakeURN derives the record URN:
//
//	<machine_name>:<file_name>:<extension>:<size_gb>:<scan_date>
//
// It is a pure function of its inputs; two identical observations admitted
// on the same scan date share the same URN. scanDate is the date portion of
// the observation's scan_ts (YYYY-MM-DD).
func MakeURN(machineName, fileName, extension string, sizeBytes int64, scanDate string) string {
	return fmt.Sprintf("%s:%s:%s:%d:%s", machineName, fileName, extension, CeilGB(sizeBytes), scanDate)
}

// ScanDate extracts the date portion of an ISO-8601 scan timestamp.
// Malformed timestamps fall back to the epoch date so ordering stays stable.
func ScanDate(scanTS string) string {
	if t, err := time.Parse(time.RFC3339Nano, scanTS); err == nil {
		return t.UTC().Format("2006-01-02")
	}
	if len(scanTS) >= 10 {
		candidate := scanTS[:10]
		if _, err := time.Parse("2006-01-02", candidate); err == nil {
			return candidate
		}
	}
	return "1970-01-01"
}

// FormatBytes renders a byte count for humans: "0 B", "512 B", "1.5 KB",
// "23 MB". One decimal below 10 units, none above.
func FormatBytes(sizeBytes int64) string {
	if sizeBytes <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	size := float64(sizeBytes)
	idx := 0
	for size >= 1024 && idx < len(units)-1 {
		size /= 1024
		idx++
	}
	if size >= 10 || idx == 0 {
		return fmt.Sprintf("%.0f %s", size, units[idx])
	}
	return fmt.Sprintf("%.1f %s", size, units[idx])
}

// NormalizeExtension lower-cases an extension and strips the leading dot,
// matching the form stored on Observations ("log", not ".log").
func NormalizeExtension(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}
