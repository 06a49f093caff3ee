// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package ingest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/tomtom215/custodia/internal/models"
)

func makeRecords(n int, prefix string) []*models.FileRecord {
	records := make([]*models.FileRecord, n)
	for i := range records {
		records[i] = &models.FileRecord{
			MachineName: "lab-01",
			FilePath:    fmt.Sprintf("/data/%s-%d.txt", prefix, i),
		}
	}
	return records
}

func TestBufferAdmitAllOrNothing(t *testing.T) {
	b := NewBuffer(5)

	if err := b.Admit(makeRecords(3, "a")); err != nil {
		t.Fatalf("Admit(3) error = %v", err)
	}
	if got := b.Pending(); got != 3 {
		t.Fatalf("Pending() = %d, want 3", got)
	}

	// 3 more would exceed capacity 5: the whole batch is rejected.
	err := b.Admit(makeRecords(3, "b"))
	if !errors.Is(err, ErrBufferFull) {
		t.Fatalf("Admit(overflow) error = %v, want ErrBufferFull", err)
	}
	if got := b.Pending(); got != 3 {
		t.Errorf("Pending() after rejection = %d, want 3 (nothing partially queued)", got)
	}

	// A batch that exactly fills remaining capacity is accepted.
	if err := b.Admit(makeRecords(2, "c")); err != nil {
		t.Errorf("Admit(exact fit) error = %v", err)
	}
	if got := b.Pending(); got != 5 {
		t.Errorf("Pending() = %d, want 5", got)
	}
}

func TestBufferDrainPreservesOrder(t *testing.T) {
	b := NewBuffer(10)
	if err := b.Admit(makeRecords(4, "x")); err != nil {
		t.Fatalf("Admit() error = %v", err)
	}

	first := b.Drain(2)
	if len(first) != 2 {
		t.Fatalf("Drain(2) returned %d records, want 2", len(first))
	}
	if first[0].FilePath != "/data/x-0.txt" || first[1].FilePath != "/data/x-1.txt" {
		t.Errorf("Drain(2) = [%s %s], want head of queue in order", first[0].FilePath, first[1].FilePath)
	}

	rest := b.Drain(10)
	if len(rest) != 2 {
		t.Fatalf("Drain(10) returned %d records, want remaining 2", len(rest))
	}
	if rest[0].FilePath != "/data/x-2.txt" {
		t.Errorf("Drain continued at %s, want /data/x-2.txt", rest[0].FilePath)
	}

	if got := b.Drain(1); got != nil {
		t.Errorf("Drain() on empty buffer = %v, want nil", got)
	}
}

func TestBufferRequeuePutsRecordsAtHead(t *testing.T) {
	b := NewBuffer(10)
	if err := b.Admit(makeRecords(4, "x")); err != nil {
		t.Fatalf("Admit() error = %v", err)
	}

	drained := b.Drain(2)
	b.Requeue(drained)

	again := b.Drain(4)
	if len(again) != 4 {
		t.Fatalf("Drain(4) after requeue returned %d records, want 4", len(again))
	}
	for i, rec := range again {
		want := fmt.Sprintf("/data/x-%d.txt", i)
		if rec.FilePath != want {
			t.Errorf("record %d = %s, want %s (requeue must restore order)", i, rec.FilePath, want)
		}
	}
}

func TestBufferRequeueMayExceedCapacity(t *testing.T) {
	b := NewBuffer(2)
	if err := b.Admit(makeRecords(2, "a")); err != nil {
		t.Fatalf("Admit() error = %v", err)
	}

	drained := b.Drain(2)
	if err := b.Admit(makeRecords(2, "b")); err != nil {
		t.Fatalf("Admit() after drain error = %v", err)
	}

	// Drained records go back even though the buffer is full again.
	b.Requeue(drained)
	if got := b.Pending(); got != 4 {
		t.Errorf("Pending() after requeue = %d, want 4", got)
	}
}

func TestBufferWakeSignaledOnAdmit(t *testing.T) {
	b := NewBuffer(10)
	if err := b.Admit(makeRecords(1, "a")); err != nil {
		t.Fatalf("Admit() error = %v", err)
	}

	select {
	case <-b.Wake():
	default:
		t.Error("Wake() channel empty after Admit, want occupancy signal")
	}
}
