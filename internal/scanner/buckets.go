// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package scanner

import (
	"sort"
	"time"
)

// bucketDays is the width of one staleness bucket.
const bucketDays = 15

// NeverScanned is the bucket of files with no recorded scan date. It sorts
// before every dated bucket, so unseen files are hashed first.
const NeverScanned = -1

// BucketOf maps a last-scan date (YYYY-MM-DD) to its staleness bucket: the
// date's day ordinal divided by the bucket width. Older dates land in lower
// buckets. Empty or malformed dates map to NeverScanned.
func BucketOf(lastScanDate string) int {
	if lastScanDate == "" {
		return NeverScanned
	}
	t, err := time.Parse("2006-01-02", lastScanDate)
	if err != nil {
		return NeverScanned
	}
	return int(t.Unix()/86400) / bucketDays
}

// SortByStaleness orders candidates for hashing: never-scanned files first,
// then ascending by bucket, so under a quota the stalest files win. The
// sort is stable, preserving walk order within a bucket.
func SortByStaleness(candidates []Candidate, lastScanned map[string]string) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return BucketOf(lastScanned[candidates[i].Path]) < BucketOf(lastScanned[candidates[j].Path])
	})
}

// BucketStat summarizes one staleness bucket for the buckets report.
type BucketStat struct {
	Bucket    int    `json:"bucket"`
	Files     int    `json:"files"`
	SizeBytes int64  `json:"size_bytes"`
	Label     string `json:"label"`
}

// BucketStats groups candidates by staleness bucket, ordered as they would
// be hashed.
func BucketStats(candidates []Candidate, lastScanned map[string]string) []BucketStat {
	byBucket := make(map[int]*BucketStat)
	for _, c := range candidates {
		b := BucketOf(lastScanned[c.Path])
		stat, ok := byBucket[b]
		if !ok {
			stat = &BucketStat{Bucket: b, Label: bucketLabel(b)}
			byBucket[b] = stat
		}
		stat.Files++
		stat.SizeBytes += c.SizeBytes
	}

	stats := make([]BucketStat, 0, len(byBucket))
	for _, stat := range byBucket {
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Bucket < stats[j].Bucket })
	return stats
}

// bucketLabel renders the bucket's date span for humans.
func bucketLabel(bucket int) string {
	if bucket == NeverScanned {
		return "never scanned"
	}
	start := time.Unix(int64(bucket)*bucketDays*86400, 0).UTC()
	end := start.AddDate(0, 0, bucketDays-1)
	return start.Format("2006-01-02") + " to " + end.Format("2006-01-02")
}
