// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package models

import "testing"

func TestCeilGB(t *testing.T) {
	tests := []struct {
		name string
		in   int64
		want int64
	}{
		{"zero", 0, 0},
		{"negative", -5, 0},
		{"one byte", 1, 1},
		{"just under 1 GiB", (1 << 30) - 1, 1},
		{"exactly 1 GiB", 1 << 30, 1},
		{"just over 1 GiB", (1 << 30) + 1, 2},
		{"exactly 4 GiB", 4 << 30, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CeilGB(tt.in); got != tt.want {
				t.Errorf("CeilGB(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestMakeURN(t *testing.T) {
	got := MakeURN("web-01", "app.log", "log", (1<<30)+1, "2026-08-01")
	want := "web-01:app.log:log:2:2026-08-01"
	if got != want {
		t.Errorf("MakeURN() = %q, want %q", got, want)
	}

	// Pure function: identical inputs yield identical URNs.
	again := MakeURN("web-01", "app.log", "log", (1<<30)+1, "2026-08-01")
	if got != again {
		t.Errorf("MakeURN() not deterministic: %q vs %q", got, again)
	}

	empty := MakeURN("web-01", "README", "", 0, "2026-08-01")
	if empty != "web-01:README::0:2026-08-01" {
		t.Errorf("MakeURN() with empty extension = %q", empty)
	}
}

func TestScanDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"rfc3339 micro", "2026-08-01T14:30:00.123456+00:00", "2026-08-01"},
		{"rfc3339 zulu", "2026-08-01T23:59:59Z", "2026-08-01"},
		{"offset crossing midnight", "2026-08-02T01:30:00+02:00", "2026-08-01"},
		{"bare date prefix", "2026-08-01 14:30", "2026-08-01"},
		{"garbage", "not-a-timestamp", "1970-01-01"},
		{"empty", "", "1970-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScanDate(tt.in); got != tt.want {
				t.Errorf("ScanDate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{-1, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{10 * 1024, "10 KB"},
		{23 * 1024 * 1024, "23 MB"},
		{3 << 30, "3.0 GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeExtension(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{".LOG", "log"},
		{"log", "log"},
		{" .Tar ", "tar"},
		{"", ""},
		{".", ""},
	}
	for _, tt := range tests {
		if got := NormalizeExtension(tt.in); got != tt.want {
			t.Errorf("NormalizeExtension(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
