// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

/*
Package ingest implements the server's buffered-ingest path: a bounded
in-memory queue fed by authenticated batch admissions and drained by a
single background flush worker, the only writer to the durable store.

Admission is all-or-nothing per batch: a batch that does not fit in the
remaining capacity is rejected whole with ErrBufferFull and the caller
retries it later. Records are enriched (ingested_at, urn, change_type) at
admission, not at flush, so two identical observations admitted in the same
minute share the same urn and ingested_at.
*/
package ingest

import (
	"errors"
	"sync"

	"github.com/tomtom215/custodia/internal/metrics"
	"github.com/tomtom215/custodia/internal/models"
)

// OverloadMessage is the fixed human-readable overload response. Agents
// match on the 503 status; the message stays stable for operators.
const OverloadMessage = "server ingest buffer is full; try again"

// ErrBufferFull signals that admitting the batch would exceed capacity.
// Nothing from the batch was queued.
var ErrBufferFull = errors.New(OverloadMessage)

// Buffer is the bounded admission queue. Capacity is counted in records,
// not batches.
type Buffer struct {
	mu       sync.Mutex
	pending  []*models.FileRecord
	capacity int

	// wake signals the flush worker that records arrived. Buffered so
	// admission never blocks on it.
	wake chan struct{}
}

// NewBuffer creates a buffer holding at most capacity records.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		pending:  make([]*models.FileRecord, 0, capacity),
		capacity: capacity,
		wake:     make(chan struct{}, 1),
	}
}

// Admit queues all records or none. Returns ErrBufferFull when the batch
// does not fit in the remaining capacity.
func (b *Buffer) Admit(records []*models.FileRecord) error {
	if len(records) == 0 {
		return nil
	}

	b.mu.Lock()
	if len(b.pending)+len(records) > b.capacity {
		b.mu.Unlock()
		return ErrBufferFull
	}
	b.pending = append(b.pending, records...)
	pending := len(b.pending)
	b.mu.Unlock()

	metrics.BufferPending.Set(float64(pending))

	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

// Drain removes and returns up to max records from the head of the queue,
// preserving admission order.
func (b *Buffer) Drain(max int) []*models.FileRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == 0 || max <= 0 {
		return nil
	}
	n := max
	if n > len(b.pending) {
		n = len(b.pending)
	}

	drained := make([]*models.FileRecord, n)
	copy(drained, b.pending[:n])
	b.pending = append(b.pending[:0], b.pending[n:]...)

	metrics.BufferPending.Set(float64(len(b.pending)))
	return drained
}

// Requeue puts records back at the head of the queue, preserving their
// relative order. Used by the flush worker after a durable-write failure;
// requeueing may exceed capacity on purpose, since drained records are
// never dropped.
func (b *Buffer) Requeue(records []*models.FileRecord) {
	if len(records) == 0 {
		return
	}

	b.mu.Lock()
	b.pending = append(append(make([]*models.FileRecord, 0, len(records)+len(b.pending)), records...), b.pending...)
	pending := len(b.pending)
	b.mu.Unlock()

	metrics.BufferPending.Set(float64(pending))
}

// Pending returns the number of queued records.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Wake returns the occupancy signal channel the flush worker selects on.
func (b *Buffer) Wake() <-chan struct{} {
	return b.wake
}
