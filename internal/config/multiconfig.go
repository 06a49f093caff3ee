// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/tomtom215/custodia/internal/schedule"
)

// ValidScheduleKey reports whether key is a well-formed schedule key
// ("Mon0910": weekday abbreviation + HHMM).
func ValidScheduleKey(key string) bool {
	return schedule.ValidKey(key)
}

// ScheduleEntry is one schedule window declared by one config file.
type ScheduleEntry struct {
	ConfigPath string
	Key        string
	QuotaGB    float64
}

// ScheduleConflict reports two windows from different config files that
// fall on the same weekday closer together than the minimum gap. Runs that
// close together thrash the disk with back-to-back full walks.
type ScheduleConflict struct {
	A   ScheduleEntry
	B   ScheduleEntry
	Gap time.Duration
}

func (c ScheduleConflict) String() string {
	return fmt.Sprintf("%s (%s) and %s (%s) are %s apart",
		c.A.Key, filepath.Base(c.A.ConfigPath),
		c.B.Key, filepath.Base(c.B.ConfigPath),
		c.Gap)
}

// DiscoverAgentConfigs returns agent config files under dir matching the
// glob pattern, sorted for deterministic reporting.
func DiscoverAgentConfigs(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*.yaml"
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %s in %s: %w", pattern, dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// CollectSchedules loads every config file and returns all declared
// schedule windows. A file that fails to load fails the collection; partial
// schedule pictures make the conflict check meaningless.
func CollectSchedules(paths []string) ([]ScheduleEntry, error) {
	var entries []ScheduleEntry
	for _, path := range paths {
		cfg, err := LoadAgentWithPath(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		keys := make([]string, 0, len(cfg.ScheduleQuotaGB))
		for key := range cfg.ScheduleQuotaGB {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			entries = append(entries, ScheduleEntry{
				ConfigPath: path,
				Key:        key,
				QuotaGB:    cfg.ScheduleQuotaGB[key],
			})
		}
	}
	return entries, nil
}

// VerifySchedules returns every pair of windows from different config files
// on the same weekday closer together than minGap. Windows within one file
// are that operator's own business and are not flagged.
func VerifySchedules(entries []ScheduleEntry, minGap time.Duration) []ScheduleConflict {
	var conflicts []ScheduleConflict
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i], entries[j]
			if a.ConfigPath == b.ConfigPath {
				continue
			}
			ka, errA := schedule.ParseKey(a.Key)
			kb, errB := schedule.ParseKey(b.Key)
			if errA != nil || errB != nil {
				continue
			}
			if ka.Weekday != kb.Weekday {
				continue
			}
			gap := ka.MinuteOfDay() - kb.MinuteOfDay()
			if gap < 0 {
				gap = -gap
			}
			gapDur := time.Duration(gap) * time.Minute
			if gapDur < minGap {
				conflicts = append(conflicts, ScheduleConflict{A: a, B: b, Gap: gapDur})
			}
		}
	}
	return conflicts
}
