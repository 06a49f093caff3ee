// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package tracker

import (
	"testing"
)

func openTracker(t *testing.T) *Tracker {
	t.Helper()
	tr, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := tr.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return tr
}

func TestUpdateAndLookup(t *testing.T) {
	tr := openTracker(t)

	if err := tr.Update("lab-01", map[string]string{"/data/a.txt": "sha-a", "/data/b.txt": "sha-b"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	known, err := tr.Lookup("lab-01", []string{"/data/a.txt", "/data/b.txt", "/data/missing.txt"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if len(known) != 2 {
		t.Fatalf("Lookup() returned %d entries, want 2", len(known))
	}
	if known["/data/a.txt"] != "sha-a" || known["/data/b.txt"] != "sha-b" {
		t.Errorf("Lookup() = %v, want stored hashes", known)
	}
	if _, ok := known["/data/missing.txt"]; ok {
		t.Error("Lookup() returned an entry for an unknown path")
	}
}

func TestLookupScopedByMachine(t *testing.T) {
	tr := openTracker(t)

	if err := tr.Update("lab-01", map[string]string{"/data/a.txt": "sha-a"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	known, err := tr.Lookup("lab-02", []string{"/data/a.txt"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if len(known) != 0 {
		t.Errorf("Lookup() for other machine = %v, want empty", known)
	}
}

func TestPrimeDoesNotClobber(t *testing.T) {
	tr := openTracker(t)

	if err := tr.Update("lab-01", map[string]string{"/data/a.txt": "fresh"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	// Prime carries a stale store value for a.txt plus a genuinely new path.
	if err := tr.Prime("lab-01", map[string]string{"/data/a.txt": "stale", "/data/b.txt": "sha-b"}); err != nil {
		t.Fatalf("Prime() error = %v", err)
	}

	known, err := tr.Lookup("lab-01", []string{"/data/a.txt", "/data/b.txt"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if known["/data/a.txt"] != "fresh" {
		t.Errorf("Prime() overwrote existing entry: got %q, want %q", known["/data/a.txt"], "fresh")
	}
	if known["/data/b.txt"] != "sha-b" {
		t.Errorf("Prime() did not seed missing entry: got %q", known["/data/b.txt"])
	}
}

func TestUpdateOverwrites(t *testing.T) {
	tr := openTracker(t)

	if err := tr.Update("lab-01", map[string]string{"/data/a.txt": "old"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := tr.Update("lab-01", map[string]string{"/data/a.txt": "new"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	known, err := tr.Lookup("lab-01", []string{"/data/a.txt"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if known["/data/a.txt"] != "new" {
		t.Errorf("Lookup() after overwrite = %q, want %q", known["/data/a.txt"], "new")
	}
}
