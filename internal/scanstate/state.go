// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

/*
Package scanstate persists the agent's durable memory between runs: which
files were last confirmed when, which schedule windows already fired, and
the machine's stable identity.

The state is monotonic with respect to confirmations: a file's entry
advances only when the server acknowledged the batch carrying it. A crash
between upload and save re-uploads at most one in-flight batch; it never
loses a confirmation that was saved.
*/
package scanstate

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/models"
)

// State is the agent's persisted scan state.
type State struct {
	// MachineID is a stable random identity minted on first run.
	MachineID string `json:"machine_id"`

	// Files maps file path to the date (YYYY-MM-DD) of its last confirmed
	// upload.
	Files map[string]string `json:"files"`

	// ScheduleLastRun maps schedule keys to the date they last fired.
	ScheduleLastRun map[string]string `json:"schedule_last_run"`

	// LastRunAt is when the last run finished, RFC3339.
	LastRunAt string `json:"last_run_at,omitempty"`

	// ConfirmedBytes is the lifetime total of confirmed upload volume.
	// It only grows.
	ConfirmedBytes int64 `json:"confirmed_bytes"`

	// SavedAt stamps the last successful save, RFC3339.
	SavedAt string `json:"saved_at,omitempty"`

	path string
}

// Load reads the state file, or creates fresh state with a new machine
// identity when the file does not exist yet.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Info().Str("path", path).Msg("No scan state yet; starting fresh")
			return fresh(path), nil
		}
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}

	st := &State{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	st.path = path
	if st.MachineID == "" {
		st.MachineID = uuid.NewString()
	}
	if st.Files == nil {
		st.Files = make(map[string]string)
	}
	if st.ScheduleLastRun == nil {
		st.ScheduleLastRun = make(map[string]string)
	}
	return st, nil
}

func fresh(path string) *State {
	return &State{
		MachineID:       uuid.NewString(),
		Files:           make(map[string]string),
		ScheduleLastRun: make(map[string]string),
		path:            path,
	}
}

// Save writes the state atomically: temp file in the same directory, fsync,
// rename. A crash mid-save leaves the previous state intact.
func (s *State) Save() error {
	s.SavedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod temp state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename state into place: %w", err)
	}
	return nil
}

// MarkConfirmed records a server-acknowledged batch: each observation's
// file entry advances to its scan date, and the confirmed volume grows by
// the batch's bytes. Called only after the upload succeeded.
func (s *State) MarkConfirmed(batch []models.Observation) {
	for i := range batch {
		obs := &batch[i]
		s.Files[obs.FilePath] = models.ScanDate(obs.ScanTS)
		s.ConfirmedBytes += obs.SizeBytes
	}
}

// MarkScheduleRun records that a schedule window fired on the given date.
func (s *State) MarkScheduleRun(key, date string) {
	s.ScheduleLastRun[key] = date
}

// FinishRun stamps the run end time.
func (s *State) FinishRun() {
	s.LastRunAt = time.Now().UTC().Format(time.RFC3339)
}

// LastScanned returns the per-path last confirmed scan dates. The returned
// map is the live state, treated as read-only by callers.
func (s *State) LastScanned() map[string]string {
	return s.Files
}
