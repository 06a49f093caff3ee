// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

/*
Package scanner walks the configured roots, filters candidates against the
exclusion policy, and hashes file contents. Filtering happens before
hashing: a file excluded by directory, extension, or size threshold never
costs a disk read.
*/
package scanner

import (
	"path/filepath"
	"strings"

	"github.com/tomtom215/custodia/internal/config"
)

// Policy is the compiled exclusion policy of one agent config.
type Policy struct {
	excludeDirNames map[string]struct{}
	excludeDirPaths []string
	excludeExts     map[string]struct{}
	thresholdsByExt map[string]config.SizeThreshold
	followSymlinks  bool
}

// NewPolicy compiles the config's exclusion settings. Extensions arrive
// already canonicalized (lower-case, leading dot) from config.Normalize.
func NewPolicy(cfg *config.AgentConfig) *Policy {
	p := &Policy{
		excludeDirNames: make(map[string]struct{}),
		excludeExts:     make(map[string]struct{}),
		thresholdsByExt: cfg.SizeThresholdKBByExt,
		followSymlinks:  cfg.FollowSymlinks,
	}
	for _, dir := range cfg.ExcludeSubdirs {
		if strings.ContainsRune(dir, filepath.Separator) {
			p.excludeDirPaths = append(p.excludeDirPaths, filepath.Clean(dir))
		} else {
			p.excludeDirNames[dir] = struct{}{}
		}
	}
	for _, ext := range cfg.ExcludeExtensions {
		p.excludeExts[ext] = struct{}{}
	}
	return p
}

// ExcludeDir reports whether the directory's whole subtree is pruned.
// Bare names match any directory of that name; paths match that exact
// location.
func (p *Policy) ExcludeDir(path string) bool {
	if _, ok := p.excludeDirNames[filepath.Base(path)]; ok {
		return true
	}
	clean := filepath.Clean(path)
	for _, excluded := range p.excludeDirPaths {
		if clean == excluded {
			return true
		}
	}
	return false
}

// ExcludeFile reports whether a file is filtered out before hashing, either
// by extension or by the extension's size threshold.
//
// Thresholds are inclusive at both ends: a file is kept when
// low <= size_kb <= upper. A file exactly at a bound passes.
func (p *Policy) ExcludeFile(path string, sizeBytes int64) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := p.excludeExts[ext]; ok {
		return true
	}

	t, ok := p.thresholdsByExt[ext]
	if !ok {
		return false
	}
	sizeKB := float64(sizeBytes) / 1024
	if low := t.Low(); low != nil && sizeKB < *low {
		return true
	}
	if upper := t.Upper(); upper != nil && sizeKB > *upper {
		return true
	}
	return false
}

// FollowSymlinks reports whether symlinked files are hashed through their
// target instead of skipped.
func (p *Policy) FollowSymlinks() bool {
	return p.followSymlinks
}
