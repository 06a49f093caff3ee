// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

/*
Package history reconstructs a content hash's observation timeline as a
single linear chain and renders it in four interchangeable forms.

The chain's ordering is total: ingested_at first, insert id as the
tie-break. scan_ts is display data only; agent clocks skew, the server's
append order does not. Every render form serializes the identical ordered
node sequence, so format parity is a structural property rather than four
code paths to keep in sync.
*/
package history

import (
	"sort"
	"time"

	"github.com/tomtom215/custodia/internal/models"
)

// Node is one observation of the hash: who saw it, where, and when.
type Node struct {
	ID          int64     `json:"id"`
	MachineName string    `json:"machine_name"`
	FilePath    string    `json:"file_path"`
	FileName    string    `json:"file_name"`
	Extension   string    `json:"extension"`
	SizeBytes   int64     `json:"size_bytes"`
	ScanTS      string    `json:"scan_ts"`
	IngestedAt  time.Time `json:"ingested_at"`
	URN         string    `json:"urn"`
}

// Chain is the ordered observation history of one hash. Edges are implicit:
// each node connects to the next, meaning "the next time this exact content
// was observed, anywhere."
type Chain struct {
	SHA256 string `json:"sha256"`
	Nodes  []Node `json:"nodes"`
}

// Empty reports whether the hash has never been observed.
func (c Chain) Empty() bool {
	return len(c.Nodes) == 0
}

// BuildChain orders the records into a chain. The store already returns
// chain order; the sort here makes the ordering a property of the builder
// rather than an assumption about the caller.
func BuildChain(sha256 string, records []*models.FileRecord) Chain {
	nodes := make([]Node, 0, len(records))
	for _, rec := range records {
		nodes = append(nodes, Node{
			ID:          rec.ID,
			MachineName: rec.MachineName,
			FilePath:    rec.FilePath,
			FileName:    rec.FileName,
			Extension:   rec.Extension,
			SizeBytes:   rec.SizeBytes,
			ScanTS:      rec.ScanTS,
			IngestedAt:  rec.IngestedAt,
			URN:         rec.URN,
		})
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if !nodes[i].IngestedAt.Equal(nodes[j].IngestedAt) {
			return nodes[i].IngestedAt.Before(nodes[j].IngestedAt)
		}
		return nodes[i].ID < nodes[j].ID
	})

	return Chain{SHA256: sha256, Nodes: nodes}
}
