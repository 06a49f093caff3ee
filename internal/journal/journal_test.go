// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package journal

import (
	"context"
	"path/filepath"
	"testing"
)

func TestJournalRecordAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() {
		if err := j.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	ctx := context.Background()
	attempts := []BatchAttempt{
		{Records: 30, Bytes: 4096, Outcome: OutcomeConfirmed, Schedule: "Mon0910"},
		{Records: 12, Bytes: 1024, Outcome: OutcomeFailed, Detail: "server status 503"},
		{Records: 5, Bytes: 512, Outcome: OutcomeRejected, Detail: "status 401"},
	}
	for _, a := range attempts {
		if err := j.Record(ctx, a); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	recent, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Recent() returned %d rows, want 3", len(recent))
	}

	// Most recent first.
	if recent[0].Outcome != OutcomeRejected {
		t.Errorf("recent[0].Outcome = %q, want %q", recent[0].Outcome, OutcomeRejected)
	}
	if recent[2].Outcome != OutcomeConfirmed || recent[2].Schedule != "Mon0910" {
		t.Errorf("recent[2] = %+v, want confirmed Mon0910 attempt", recent[2])
	}
	if recent[0].At == "" {
		t.Error("Record() did not stamp At")
	}
}

func TestJournalRecentLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer j.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := j.Record(ctx, BatchAttempt{Records: i, Outcome: OutcomeConfirmed}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	recent, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("Recent(2) returned %d rows, want 2", len(recent))
	}
}

func TestJournalReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := j.Record(context.Background(), BatchAttempt{Records: 1, Outcome: OutcomeConfirmed}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() after close error = %v", err)
	}
	defer reopened.Close()

	recent, err := reopened.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("Recent() after reopen returned %d rows, want 1", len(recent))
	}
}
