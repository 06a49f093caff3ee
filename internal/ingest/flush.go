// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/metrics"
	"github.com/tomtom215/custodia/internal/models"
)

// RecordInserter is the durable append surface. The insert must be
// all-or-nothing so a failed drain can be retried whole.
type RecordInserter interface {
	InsertFileRecords(ctx context.Context, records []*models.FileRecord) error
}

// flushWriteTimeout bounds one durable transaction. Detached from the
// supervisor context so shutdown does not abort an in-flight write.
const flushWriteTimeout = 30 * time.Second

// errBackoff is the pause after a failed flush before the next attempt,
// keeping a down store from being hammered in a tight loop.
const errBackoff = time.Second

// FlushWorker drains the buffer into the durable store. It is the only
// writer to file_records; admission and reads never touch the append path.
type FlushWorker struct {
	buffer   *Buffer
	store    RecordInserter
	interval time.Duration
	maxRows  int

	// flushMu serializes drain cycles so the background loop and
	// SyncFlush callers never interleave their drains, keeping insert
	// order equal to admission order.
	flushMu sync.Mutex
}

// NewFlushWorker creates the worker. interval is the wake period without
// occupancy signals; maxRows caps one durable transaction.
func NewFlushWorker(buffer *Buffer, store RecordInserter, interval time.Duration, maxRows int) *FlushWorker {
	return &FlushWorker{
		buffer:   buffer,
		store:    store,
		interval: interval,
		maxRows:  maxRows,
	}
}

// Serve implements suture.Service: the worker loops until the context is
// canceled, then performs a final drain so queued records survive a clean
// shutdown.
func (w *FlushWorker) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.finalDrain()
			return ctx.Err()
		case <-w.buffer.Wake():
		case <-ticker.C:
		}

		if err := w.flushOnce(); err != nil {
			// Drained records were requeued; pause before retrying
			// so a down store is not hammered.
			select {
			case <-ctx.Done():
				w.finalDrain()
				return ctx.Err()
			case <-time.After(errBackoff):
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (w *FlushWorker) String() string {
	return "flush-worker"
}

// flushOnce drains up to maxRows and writes them in one transaction. On
// failure the drained slice is put back at the buffer head, preserving
// order, and the failure is surfaced as an operational fault.
func (w *FlushWorker) flushOnce() error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()
	return w.flushChunk(w.maxRows)
}

// flushChunk drains up to max records and writes them durably. Caller
// holds flushMu.
func (w *FlushWorker) flushChunk(max int) error {
	drained := w.buffer.Drain(max)
	if len(drained) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushWriteTimeout)
	defer cancel()

	start := time.Now()
	err := w.store.InsertFileRecords(ctx, drained)
	elapsed := time.Since(start)
	metrics.RecordFlush(len(drained), elapsed, err)

	if err != nil {
		w.buffer.Requeue(drained)
		logging.Error().Err(err).Int("records", len(drained)).
			Msg("Durable append failed; records requeued for retry")
		return fmt.Errorf("flush %d records: %w", len(drained), err)
	}

	logging.Debug().Int("records", len(drained)).Dur("elapsed", elapsed).
		Msg("Flushed records to durable store")
	return nil
}

// SyncFlush drains whatever is queued at the moment of the call, writing
// in transactions of at most maxRows. It is the forced-flush-before-read
// consistency booster: best-effort, and it does not block admissions that
// arrive while it runs.
func (w *FlushWorker) SyncFlush(ctx context.Context) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	// Snapshot the occupancy once; records admitted after this point
	// belong to the next cycle.
	remaining := w.buffer.Pending()
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := remaining
		if chunk > w.maxRows {
			chunk = w.maxRows
		}
		if err := w.flushChunk(chunk); err != nil {
			return err
		}
		remaining -= chunk
	}
	return nil
}

// finalDrain empties the buffer at shutdown. Failures leave records
// requeued; with the process exiting they are lost, which is why the
// failure is logged at error level as an operational fault.
func (w *FlushWorker) finalDrain() {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	for w.buffer.Pending() > 0 {
		if err := w.flushChunk(w.maxRows); err != nil {
			logging.Error().Err(err).Int("pending", w.buffer.Pending()).
				Msg("Final drain failed; queued records will not survive shutdown")
			return
		}
	}
}
