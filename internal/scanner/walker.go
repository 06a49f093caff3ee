// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tomtom215/custodia/internal/logging"
)

// Candidate is a file that survived the walk filters and is eligible for
// hashing.
type Candidate struct {
	Path      string
	Name      string
	Extension string
	SizeBytes int64
}

// DedupeRoots drops roots that sit inside other roots, keeping the
// shortest ancestor, so overlapping configuration never walks a subtree
// twice. Roots are absolutized first so a relative and an absolute
// spelling of the same tree dedupe. Returned roots are sorted.
func DedupeRoots(roots []string) []string {
	cleaned := make([]string, 0, len(roots))
	seen := make(map[string]struct{}, len(roots))
	for _, root := range roots {
		c, err := filepath.Abs(root)
		if err != nil {
			c = filepath.Clean(root)
		}
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			cleaned = append(cleaned, c)
		}
	}
	sort.Strings(cleaned)

	kept := cleaned[:0]
	for _, root := range cleaned {
		covered := false
		for _, ancestor := range kept {
			if root == ancestor || strings.HasPrefix(root, ancestor+string(filepath.Separator)) {
				covered = true
				break
			}
		}
		if !covered {
			kept = append(kept, root)
		}
	}
	return kept
}

// Walk traverses the deduped roots and returns the candidates that pass the
// policy. Unreadable directories are logged and skipped; a missing root is
// not an error, since agents routinely carry configs for volumes that are
// not always mounted.
func Walk(ctx context.Context, roots []string, policy *Policy) ([]Candidate, error) {
	var candidates []Candidate

	for _, root := range DedupeRoots(roots) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := os.Stat(root); err != nil {
			logging.Warn().Str("root", root).Err(err).Msg("Scan root unavailable; skipping")
			continue
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				logging.Warn().Str("path", path).Err(err).Msg("Walk error; skipping entry")
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				if path != root && policy.ExcludeDir(path) {
					return fs.SkipDir
				}
				return nil
			}

			candidate, ok := examine(path, d, policy)
			if !ok {
				return nil
			}
			candidates = append(candidates, candidate)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return candidates, nil
}

// examine applies the per-file filters: regular files only, symlinks per
// policy, hardlink duplicates skipped, then extension and size thresholds.
func examine(path string, d fs.DirEntry, policy *Policy) (Candidate, bool) {
	if d.Type()&fs.ModeSymlink != 0 {
		if !policy.FollowSymlinks() {
			return Candidate{}, false
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return Candidate{}, false
		}
		return buildCandidate(path, info.Size(), policy)
	}

	if !d.Type().IsRegular() {
		return Candidate{}, false
	}

	info, err := d.Info()
	if err != nil {
		// Vanished between readdir and stat.
		return Candidate{}, false
	}

	// A file reachable through multiple hard links would be hashed once
	// per link; skip the extra names.
	if nlinks := linkCount(info); nlinks > 1 {
		logging.Debug().Str("path", path).Uint64("links", nlinks).
			Msg("Skipping multi-link file")
		return Candidate{}, false
	}

	return buildCandidate(path, info.Size(), policy)
}

func buildCandidate(path string, size int64, policy *Policy) (Candidate, bool) {
	if policy.ExcludeFile(path, size) {
		return Candidate{}, false
	}
	return Candidate{
		Path:      path,
		Name:      filepath.Base(path),
		Extension: strings.ToLower(filepath.Ext(path)),
		SizeBytes: size,
	}, true
}
