// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/custodia/internal/config"
)

func fptr(v float64) *float64 { return &v }

func testPolicy(t *testing.T, mutate func(*config.AgentConfig)) *Policy {
	t.Helper()
	cfg := &config.AgentConfig{
		ServerURL: "http://localhost:8571",
		AuthToken: "token",
		ScanPaths: []string{"."},
	}
	if mutate != nil {
		mutate(cfg)
	}
	cfg.Normalize()
	return NewPolicy(cfg)
}

func TestPolicyThresholdsInclusive(t *testing.T) {
	policy := testPolicy(t, func(cfg *config.AgentConfig) {
		cfg.SizeThresholdKBByExt = map[string]config.SizeThreshold{
			".log": {LowThereHold: fptr(10), UpperThereHold: fptr(1024)},
		}
	})

	tests := []struct {
		name      string
		sizeBytes int64
		wantSkip  bool
	}{
		{"below low", 9 * 1024, true},
		{"exactly low", 10 * 1024, false},
		{"inside band", 500 * 1024, false},
		{"exactly upper", 1024 * 1024, false},
		{"above upper", 1024*1024 + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.ExcludeFile("/var/log/app.log", tt.sizeBytes)
			if got != tt.wantSkip {
				t.Errorf("ExcludeFile(%d bytes) = %v, want %v", tt.sizeBytes, got, tt.wantSkip)
			}
		})
	}
}

func TestPolicyThresholdAliasSpellings(t *testing.T) {
	// lowthreshold/upperthreshold fold into the canonical fields.
	policy := testPolicy(t, func(cfg *config.AgentConfig) {
		cfg.SizeThresholdKBByExt = map[string]config.SizeThreshold{
			"LOG": {LowAlias: fptr(10), UpperAlias: fptr(20)},
		}
	})

	if !policy.ExcludeFile("/x/a.log", 5*1024) {
		t.Error("ExcludeFile(5 KB) = false, want true (below aliased low)")
	}
	if policy.ExcludeFile("/x/a.log", 15*1024) {
		t.Error("ExcludeFile(15 KB) = true, want false (inside aliased band)")
	}
}

func TestPolicyExcludeExtension(t *testing.T) {
	policy := testPolicy(t, func(cfg *config.AgentConfig) {
		cfg.ExcludeExtensions = []string{"tmp", ".BAK"}
	})

	if !policy.ExcludeFile("/x/scratch.tmp", 1) {
		t.Error("ExcludeFile(.tmp) = false, want true")
	}
	if !policy.ExcludeFile("/x/old.bak", 1) {
		t.Error("ExcludeFile(.bak) = false, want true")
	}
	if policy.ExcludeFile("/x/keep.txt", 1) {
		t.Error("ExcludeFile(.txt) = true, want false")
	}
}

func TestPolicyExcludeDir(t *testing.T) {
	policy := testPolicy(t, func(cfg *config.AgentConfig) {
		cfg.ExcludeSubdirs = []string{"node_modules", "/srv/cache"}
	})

	tests := []struct {
		path string
		want bool
	}{
		{"/app/node_modules", true},
		{"/app/sub/node_modules", true},
		{"/srv/cache", true},
		{"/srv/cache2", false},
		{"/app/src", false},
	}
	for _, tt := range tests {
		if got := policy.ExcludeDir(tt.path); got != tt.want {
			t.Errorf("ExcludeDir(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestDedupeRoots(t *testing.T) {
	tests := []struct {
		name  string
		roots []string
		want  []string
	}{
		{
			"nested dropped",
			[]string{"/data/media/movies", "/data/media", "/home"},
			[]string{"/data/media", "/home"},
		},
		{
			"duplicates dropped",
			[]string{"/data", "/data/"},
			[]string{"/data"},
		},
		{
			"siblings kept",
			[]string{"/data/a", "/data/b"},
			[]string{"/data/a", "/data/b"},
		},
		{
			"prefix is not ancestor",
			[]string{"/data", "/database"},
			[]string{"/data", "/database"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DedupeRoots(tt.roots)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DedupeRoots(%v) = %v, want %v", tt.roots, got, tt.want)
			}
		})
	}
}

func TestDedupeRootsAbsolutizesRelative(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error = %v", err)
	}

	// A relative and an absolute spelling of the same tree collapse to one
	// root.
	got := DedupeRoots([]string{".", cwd})
	want := []string{cwd}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DedupeRoots(\".\", %q) = %v, want %v", cwd, got, want)
	}

	// A relative subdir of an absolute root is covered by it.
	got = DedupeRoots([]string{cwd, "sub"})
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DedupeRoots(%q, \"sub\") = %v, want %v", cwd, got, want)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestWalkFiltersAndPrunes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep.txt"), "hello")
	writeFile(t, filepath.Join(root, "skip.tmp"), "scratch")
	writeFile(t, filepath.Join(root, "node_modules", "dep.js"), "var x")
	writeFile(t, filepath.Join(root, "sub", "nested.txt"), "world")

	policy := testPolicy(t, func(cfg *config.AgentConfig) {
		cfg.ExcludeSubdirs = []string{"node_modules"}
		cfg.ExcludeExtensions = []string{".tmp"}
	})

	candidates, err := Walk(context.Background(), []string{root}, policy)
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	paths := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		paths[c.Path] = true
	}
	if len(candidates) != 2 {
		t.Fatalf("Walk() returned %d candidates, want 2 (%v)", len(candidates), paths)
	}
	if !paths[filepath.Join(root, "keep.txt")] || !paths[filepath.Join(root, "sub", "nested.txt")] {
		t.Errorf("Walk() candidates = %v, want keep.txt and sub/nested.txt", paths)
	}
}

func TestWalkSkipsSymlinksByDefault(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "real.txt")
	writeFile(t, target, "content")
	link := filepath.Join(root, "alias.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	policy := testPolicy(t, nil)
	candidates, err := Walk(context.Background(), []string{root}, policy)
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("Walk() returned %d candidates, want 1 (symlink skipped)", len(candidates))
	}
	if candidates[0].Path != target {
		t.Errorf("Walk() candidate = %q, want %q", candidates[0].Path, target)
	}

	followPolicy := testPolicy(t, func(cfg *config.AgentConfig) { cfg.FollowSymlinks = true })
	candidates, err = Walk(context.Background(), []string{root}, followPolicy)
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(candidates) != 2 {
		t.Errorf("Walk() with follow_symlinks returned %d candidates, want 2", len(candidates))
	}
}

func TestWalkMissingRootIsNotError(t *testing.T) {
	policy := testPolicy(t, nil)
	candidates, err := Walk(context.Background(), []string{filepath.Join(t.TempDir(), "missing")}, policy)
	if err != nil {
		t.Fatalf("Walk() error = %v, want nil for missing root", err)
	}
	if len(candidates) != 0 {
		t.Errorf("Walk() returned %d candidates, want 0", len(candidates))
	}
}

func TestHasherDigest(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "data.bin")
	content := "the quick brown fox"
	writeFile(t, path, content)

	h := NewHasher(0)
	obs, err := h.Hash(context.Background(), Candidate{
		Path: path, Name: "data.bin", Extension: ".bin", SizeBytes: int64(len(content)),
	})
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	sum := sha256.Sum256([]byte(content))
	want := hex.EncodeToString(sum[:])
	if obs.SHA256 != want {
		t.Errorf("Hash() sha256 = %q, want %q", obs.SHA256, want)
	}
	if obs.SizeBytes != int64(len(content)) {
		t.Errorf("Hash() size = %d, want %d", obs.SizeBytes, len(content))
	}
	if obs.Extension != "bin" {
		t.Errorf("Hash() extension = %q, want %q", obs.Extension, "bin")
	}
	if obs.ScanTS == "" {
		t.Error("Hash() scan_ts is empty")
	}
}

func TestHasherScanTSMicrosecondPrecision(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "data.bin")
	writeFile(t, path, "content")

	h := NewHasher(0)
	obs, err := h.Hash(context.Background(), Candidate{Path: path, Name: "data.bin"})
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	// scan_ts carries six fractional-second digits.
	if _, err := time.Parse("2006-01-02T15:04:05.000000Z07:00", obs.ScanTS); err != nil {
		t.Errorf("scan_ts %q does not carry microsecond precision: %v", obs.ScanTS, err)
	}
}

func TestHasherVanishedFile(t *testing.T) {
	h := NewHasher(0)
	_, err := h.Hash(context.Background(), Candidate{
		Path: filepath.Join(t.TempDir(), "gone.txt"), Name: "gone.txt",
	})
	if !errors.Is(err, ErrVanished) {
		t.Errorf("Hash(missing) error = %v, want ErrVanished", err)
	}
}

func TestHasherContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := NewHasher(0)
	_, err := h.Hash(ctx, Candidate{Path: "/nonexistent"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Hash(canceled ctx) error = %v, want context.Canceled", err)
	}
}

func TestBucketOf(t *testing.T) {
	tests := []struct {
		name string
		date string
		want int
	}{
		{"never scanned", "", NeverScanned},
		{"malformed", "not-a-date", NeverScanned},
		{"epoch", "1970-01-01", 0},
		{"day 14 same bucket", "1970-01-15", 0},
		{"day 15 next bucket", "1970-01-16", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BucketOf(tt.date); got != tt.want {
				t.Errorf("BucketOf(%q) = %d, want %d", tt.date, got, tt.want)
			}
		})
	}
}

func TestSortByStalenessNeverScannedFirst(t *testing.T) {
	candidates := []Candidate{
		{Path: "/a", SizeBytes: 1},
		{Path: "/b", SizeBytes: 1},
		{Path: "/c", SizeBytes: 1},
	}
	lastScanned := map[string]string{
		"/a": "2026-08-01",
		"/c": "2026-01-01",
		// /b never scanned
	}

	SortByStaleness(candidates, lastScanned)

	wantOrder := []string{"/b", "/c", "/a"}
	for i, want := range wantOrder {
		if candidates[i].Path != want {
			t.Errorf("candidates[%d].Path = %q, want %q", i, candidates[i].Path, want)
		}
	}
}

func TestBucketStats(t *testing.T) {
	candidates := []Candidate{
		{Path: "/a", SizeBytes: 100},
		{Path: "/b", SizeBytes: 200},
		{Path: "/c", SizeBytes: 50},
	}
	lastScanned := map[string]string{"/a": "2026-08-01", "/b": "2026-08-02"}

	stats := BucketStats(candidates, lastScanned)
	if len(stats) != 2 {
		t.Fatalf("BucketStats() returned %d buckets, want 2", len(stats))
	}
	if stats[0].Bucket != NeverScanned {
		t.Errorf("stats[0].Bucket = %d, want %d", stats[0].Bucket, NeverScanned)
	}
	if stats[0].Files != 1 || stats[0].SizeBytes != 50 {
		t.Errorf("stats[0] = %+v, want 1 file of 50 bytes", stats[0])
	}
	if stats[1].Files != 2 || stats[1].SizeBytes != 300 {
		t.Errorf("stats[1] = %+v, want 2 files of 300 bytes", stats[1])
	}
	if stats[0].Label != "never scanned" {
		t.Errorf("stats[0].Label = %q, want %q", stats[0].Label, "never scanned")
	}
}
