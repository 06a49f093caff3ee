// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package schedule

import (
	"testing"
	"time"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		key     string
		wantDay time.Weekday
		wantH   int
		wantM   int
		wantErr bool
	}{
		{key: "Mon0910", wantDay: time.Monday, wantH: 9, wantM: 10},
		{key: "Sun2330", wantDay: time.Sunday, wantH: 23, wantM: 30},
		{key: "Fri0000", wantDay: time.Friday, wantH: 0, wantM: 0},
		{key: "Mon2410", wantErr: true}, // hour out of range
		{key: "Mon0960", wantErr: true}, // minute out of range
		{key: "mon0910", wantErr: true}, // weekday is case-sensitive
		{key: "Monday0910", wantErr: true},
		{key: "Mon910", wantErr: true},
		{key: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			key, err := ParseKey(tt.key)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseKey(%q) = nil error, want failure", tt.key)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKey(%q) error = %v", tt.key, err)
			}
			if key.Weekday != tt.wantDay || key.Hour != tt.wantH || key.Minute != tt.wantM {
				t.Errorf("ParseKey(%q) = %v %02d:%02d, want %v %02d:%02d",
					tt.key, key.Weekday, key.Hour, key.Minute, tt.wantDay, tt.wantH, tt.wantM)
			}
		})
	}
}

func TestNowKeyRoundTrips(t *testing.T) {
	// 2026-08-24 is a Monday.
	now := time.Date(2026, 8, 24, 9, 10, 45, 0, time.UTC)
	if got := NowKey(now); got != "Mon0910" {
		t.Errorf("NowKey() = %q, want Mon0910", got)
	}
	if !ValidKey(NowKey(now)) {
		t.Error("NowKey() produced a key ParseKey rejects")
	}
}

func TestWindowsRejectsMalformedKeys(t *testing.T) {
	if _, err := Windows(map[string]float64{"Mon0910": 1, "bogus": 2}); err == nil {
		t.Error("Windows() = nil error, want failure on malformed key")
	}

	windows, err := Windows(map[string]float64{"Tue1200": 2, "Mon0910": 1})
	if err != nil {
		t.Fatalf("Windows() error = %v", err)
	}
	if len(windows) != 2 || windows[0].Key != "Mon0910" {
		t.Errorf("Windows() = %v, want sorted [Mon0910 Tue1200]", windows)
	}
}

func TestDueOncePerCalendarDay(t *testing.T) {
	windows, err := Windows(map[string]float64{"Mon0910": 5})
	if err != nil {
		t.Fatalf("Windows() error = %v", err)
	}
	monday := time.Date(2026, 8, 24, 9, 10, 0, 0, time.UTC)

	tests := []struct {
		name    string
		lastRun map[string]string
		now     time.Time
		want    bool
	}{
		{"fires in its minute", nil, monday, true},
		{"already fired today", map[string]string{"Mon0910": "2026-08-24"}, monday, false},
		{"fired a week ago", map[string]string{"Mon0910": "2026-08-17"}, monday, true},
		{"wrong minute", nil, monday.Add(time.Minute), false},
		{"wrong day", nil, monday.AddDate(0, 0, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Due(windows, tt.lastRun, tt.now)
			if (got != nil) != tt.want {
				t.Errorf("Due() = %v, want due=%v", got, tt.want)
			}
			if got != nil && got.QuotaGB != 5 {
				t.Errorf("Due().QuotaGB = %v, want 5", got.QuotaGB)
			}
		})
	}
}

func TestMinuteOfDay(t *testing.T) {
	key, err := ParseKey("Wed1430")
	if err != nil {
		t.Fatalf("ParseKey() error = %v", err)
	}
	if got := key.MinuteOfDay(); got != 14*60+30 {
		t.Errorf("MinuteOfDay() = %d, want %d", got, 14*60+30)
	}
}
