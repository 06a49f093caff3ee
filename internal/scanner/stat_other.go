// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

//go:build !unix

package scanner

import "io/fs"

// linkCount has no portable source on non-unix platforms; every file is
// treated as singly linked.
func linkCount(_ fs.FileInfo) uint64 {
	return 1
}
