// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package scanstate

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/tomtom215/custodia/internal/models"
)

func TestLoadFreshState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	st, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if st.MachineID == "" {
		t.Error("Load() fresh state has empty MachineID")
	}
	if len(st.Files) != 0 {
		t.Errorf("Load() fresh state has %d files, want 0", len(st.Files))
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	st, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	st.MarkConfirmed([]models.Observation{
		{FilePath: "/srv/a.txt", SizeBytes: 1024, ScanTS: "2026-08-20T10:15:00Z"},
		{FilePath: "/srv/b.txt", SizeBytes: 2048, ScanTS: "2026-08-20T10:16:00Z"},
	})
	st.MarkScheduleRun("Mon0910", "2026-08-24")
	st.FinishRun()

	if err := st.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat(state) error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("state file mode = %o, want 600", perm)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after save error = %v", err)
	}
	if reloaded.MachineID != st.MachineID {
		t.Errorf("reloaded MachineID = %q, want %q", reloaded.MachineID, st.MachineID)
	}
	if reloaded.Files["/srv/a.txt"] != "2026-08-20" {
		t.Errorf("reloaded Files[/srv/a.txt] = %q, want %q", reloaded.Files["/srv/a.txt"], "2026-08-20")
	}
	if reloaded.ConfirmedBytes != 3072 {
		t.Errorf("reloaded ConfirmedBytes = %d, want 3072", reloaded.ConfirmedBytes)
	}
	if reloaded.ScheduleLastRun["Mon0910"] != "2026-08-24" {
		t.Errorf("reloaded ScheduleLastRun[Mon0910] = %q, want %q", reloaded.ScheduleLastRun["Mon0910"], "2026-08-24")
	}
	if reloaded.LastRunAt == "" {
		t.Error("reloaded LastRunAt is empty")
	}
}

func TestConfirmedBytesOnlyGrows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	st, _ := Load(path)

	st.MarkConfirmed([]models.Observation{{FilePath: "/a", SizeBytes: 100, ScanTS: "2026-08-20T10:00:00Z"}})
	first := st.ConfirmedBytes
	st.MarkConfirmed([]models.Observation{{FilePath: "/a", SizeBytes: 100, ScanTS: "2026-08-21T10:00:00Z"}})

	if st.ConfirmedBytes <= first {
		t.Errorf("ConfirmedBytes = %d after second confirmation, want > %d", st.ConfirmedBytes, first)
	}
	if st.Files["/a"] != "2026-08-21" {
		t.Errorf("Files[/a] = %q, want advanced to 2026-08-21", st.Files["/a"])
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	st, _ := Load(filepath.Join(dir, "state.json"))
	if err := st.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".state-") {
			t.Errorf("temp file %q left behind after Save()", e.Name())
		}
	}
}

func TestLoadCorruptStateFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load(corrupt) = nil error, want parse failure")
	}
}

func TestLockExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.lock")

	lock, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if _, err := Acquire(path); err == nil {
		t.Fatal("second Acquire() = nil error, want lock conflict")
	} else if !strings.Contains(err.Error(), strconv.Itoa(os.Getpid())) {
		t.Errorf("lock conflict error = %q, want holder pid included", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	relock, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	if err := relock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
}
