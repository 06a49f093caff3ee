// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package schedule parses weekly schedule keys and decides when a quota
// window is due to fire.
//
// A schedule key names one weekly minute: a three-letter weekday
// abbreviation followed by HHMM in local time, e.g. "Mon0910" or "Sun2330".
// A window fires at most once per key per calendar day, gated by the
// agent's persisted schedule_last_run map.
package schedule

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// keyPattern matches a weekday abbreviation followed by HHMM.
var keyPattern = regexp.MustCompile(`^(Mon|Tue|Wed|Thu|Fri|Sat|Sun)(\d{2})(\d{2})$`)

// weekdays maps the key abbreviation to time.Weekday.
var weekdays = map[string]time.Weekday{
	"Sun": time.Sunday,
	"Mon": time.Monday,
	"Tue": time.Tuesday,
	"Wed": time.Wednesday,
	"Thu": time.Thursday,
	"Fri": time.Friday,
	"Sat": time.Saturday,
}

// Key is one parsed schedule key.
type Key struct {
	Raw     string
	Weekday time.Weekday
	Hour    int
	Minute  int
}

// ParseKey parses a schedule key like "Mon0910".
func ParseKey(s string) (Key, error) {
	m := keyPattern.FindStringSubmatch(s)
	if m == nil {
		return Key{}, fmt.Errorf("schedule key %q does not match WeekdayHHMM (e.g. Mon0910)", s)
	}
	hour, _ := strconv.Atoi(m[2])
	minute, _ := strconv.Atoi(m[3])
	if hour > 23 {
		return Key{}, fmt.Errorf("schedule key %q: hour %02d out of range", s, hour)
	}
	if minute > 59 {
		return Key{}, fmt.Errorf("schedule key %q: minute %02d out of range", s, minute)
	}
	return Key{Raw: s, Weekday: weekdays[m[1]], Hour: hour, Minute: minute}, nil
}

// ValidKey reports whether s parses as a schedule key.
func ValidKey(s string) bool {
	_, err := ParseKey(s)
	return err == nil
}

// MinuteOfDay returns the key's offset into its day in minutes.
func (k Key) MinuteOfDay() int {
	return k.Hour*60 + k.Minute
}

// NowKey renders t as the schedule key for its local weekday and minute.
func NowKey(t time.Time) string {
	return fmt.Sprintf("%s%02d%02d", t.Weekday().String()[:3], t.Hour(), t.Minute())
}

// Window is one configured schedule window with its upload quota.
type Window struct {
	Key     string
	QuotaGB float64
}

// Windows converts a schedule_quota_gb config map into a sorted window
// list, rejecting malformed keys.
func Windows(quotas map[string]float64) ([]Window, error) {
	windows := make([]Window, 0, len(quotas))
	for key, quota := range quotas {
		if _, err := ParseKey(key); err != nil {
			return nil, err
		}
		windows = append(windows, Window{Key: key, QuotaGB: quota})
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].Key < windows[j].Key })
	return windows, nil
}

// DateOf renders t's local calendar date, the granularity of the
// once-per-day gate.
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// Due returns the window matching now's weekday and minute, unless
// lastRun records it as already fired today. lastRun maps schedule keys to
// the ISO date of their last firing; the date gate is what keeps an agent
// restarted inside a window from running the same window twice.
func Due(windows []Window, lastRun map[string]string, now time.Time) *Window {
	nowKey := NowKey(now)
	today := DateOf(now)
	for i := range windows {
		if windows[i].Key != nowKey {
			continue
		}
		if lastRun[windows[i].Key] == today {
			return nil
		}
		return &windows[i]
	}
	return nil
}
