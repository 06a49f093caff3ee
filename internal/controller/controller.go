// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

/*
Package controller orchestrates one agent run: hello, walk, prioritize by
staleness, hash, upload in batches, and confirm state in order.

Hashing and uploading are pipelined: a producer goroutine hashes the next
batch while the previous one is on the wire. Confirmation stays strictly in
batch order, so the persisted state never records a later batch while an
earlier one is unconfirmed.

The quota check runs after each hashed file, so a window stops within one
file of its quota: the file whose bytes meet or exceed the remaining quota
is still uploaded, then the run ends.
*/
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/custodia/internal/config"
	"github.com/tomtom215/custodia/internal/journal"
	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/models"
	"github.com/tomtom215/custodia/internal/scanner"
	"github.com/tomtom215/custodia/internal/scanstate"
	"github.com/tomtom215/custodia/internal/uploader"
)

// batchPipelineDepth is how many hashed batches may wait for upload. One
// keeps the pipeline tight: hash at most one batch ahead of the wire.
const batchPipelineDepth = 1

// Uploader is the transport surface the controller drives.
type Uploader interface {
	Hello(ctx context.Context) error
	UploadBatch(ctx context.Context, req *models.IngestRequest) (*models.IngestResult, error)
}

// Attempts is the optional journal surface. Failures are logged, never
// propagated.
type Attempts interface {
	Record(ctx context.Context, attempt journal.BatchAttempt) error
}

// RunReport summarizes one run.
type RunReport struct {
	Walked         int     `json:"walked"`
	Hashed         int     `json:"hashed"`
	Vanished       int     `json:"vanished"`
	Uploaded       int     `json:"uploaded"`
	Batches        int     `json:"batches"`
	UploadedBytes  int64   `json:"uploaded_bytes"`
	Changed        int     `json:"changed"`
	QuotaGB        float64 `json:"quota_gb,omitempty"`
	QuotaExhausted bool    `json:"quota_exhausted"`
	Duration       string  `json:"duration"`
}

// Controller runs scans against one agent config.
type Controller struct {
	cfg      *config.AgentConfig
	client   Uploader
	attempts Attempts // may be nil
	schedule string   // window key for journal rows, empty for manual runs
}

// New creates a controller. attempts may be nil when no journal is
// configured.
func New(cfg *config.AgentConfig, client Uploader, attempts Attempts) *Controller {
	return &Controller{cfg: cfg, client: client, attempts: attempts}
}

// SetScheduleKey tags subsequent journal rows with the firing window.
func (c *Controller) SetScheduleKey(key string) {
	c.schedule = key
}

// RunOnce executes one scan-and-upload run under the given quota.
// quotaGB <= 0 means unbounded. State is saved after every confirmed batch;
// a failure mid-run keeps all confirmations made so far.
func (c *Controller) RunOnce(ctx context.Context, state *scanstate.State, quotaGB float64) (*RunReport, error) {
	start := time.Now()
	report := &RunReport{QuotaGB: quotaGB}

	// Fail fast before any disk work.
	if err := c.client.Hello(ctx); err != nil {
		return report, fmt.Errorf("server hello: %w", err)
	}

	policy := scanner.NewPolicy(c.cfg)
	candidates, err := scanner.Walk(ctx, c.cfg.ScanPaths, policy)
	if err != nil {
		return report, fmt.Errorf("walk scan roots: %w", err)
	}
	report.Walked = len(candidates)
	scanner.SortByStaleness(candidates, state.LastScanned())

	batches := make(chan []models.Observation, batchPipelineDepth)
	hashErr := make(chan error, 1)
	hashCtx, stopHashing := context.WithCancel(ctx)
	defer stopHashing()

	go func() {
		defer close(batches)
		hashErr <- c.hashIntoBatches(hashCtx, candidates, quotaGB, report, batches)
	}()

	uploadErr := c.uploadBatches(ctx, state, report, batches)
	if uploadErr != nil {
		stopHashing()
		// Drain so the producer can exit before we return.
		for range batches {
		}
		<-hashErr
		report.Duration = time.Since(start).String()
		return report, uploadErr
	}

	if err := <-hashErr; err != nil && !errors.Is(err, context.Canceled) {
		report.Duration = time.Since(start).String()
		return report, err
	}

	state.FinishRun()
	if err := state.Save(); err != nil {
		return report, fmt.Errorf("save final state: %w", err)
	}

	report.Duration = time.Since(start).String()
	logging.Info().Int("walked", report.Walked).Int("hashed", report.Hashed).
		Int("uploaded", report.Uploaded).Int64("bytes", report.UploadedBytes).
		Bool("quota_exhausted", report.QuotaExhausted).Str("duration", report.Duration).
		Msg("Run complete")
	return report, nil
}

// hashIntoBatches hashes candidates in priority order, emitting full
// batches until done or the quota is met. The quota is checked after each
// file, so at most the crossing file overshoots.
func (c *Controller) hashIntoBatches(ctx context.Context, candidates []scanner.Candidate, quotaGB float64, report *RunReport, out chan<- []models.Observation) error {
	hasher := scanner.NewHasher(c.cfg.ScanRateLimit)
	batchSize := c.cfg.BatchSize()
	quotaBytes := int64(quotaGB * float64(int64(1)<<30))

	batch := make([]models.Observation, 0, batchSize)
	var hashedBytes int64

	flush := func() bool {
		if len(batch) == 0 {
			return true
		}
		select {
		case out <- batch:
			batch = make([]models.Observation, 0, batchSize)
			return true
		case <-ctx.Done():
			return false
		}
	}

	for _, candidate := range candidates {
		obs, err := hasher.Hash(ctx, candidate)
		if err != nil {
			if errors.Is(err, scanner.ErrVanished) {
				report.Vanished++
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			// Unreadable files are logged and skipped; one bad file
			// must not end the run.
			logging.Warn().Err(err).Str("path", candidate.Path).Msg("Hash failed; skipping file")
			continue
		}

		report.Hashed++
		hashedBytes += obs.SizeBytes
		batch = append(batch, obs)

		if len(batch) >= batchSize {
			if !flush() {
				return ctx.Err()
			}
		}

		if quotaBytes > 0 && hashedBytes >= quotaBytes {
			report.QuotaExhausted = true
			logging.Info().Int64("hashed_bytes", hashedBytes).Int64("quota_bytes", quotaBytes).
				Msg("Quota reached; stopping after current file")
			break
		}
	}

	if !flush() {
		return ctx.Err()
	}
	return nil
}

// uploadBatches consumes hashed batches in order, uploading each and
// confirming it into the state before the next is confirmed.
func (c *Controller) uploadBatches(ctx context.Context, state *scanstate.State, report *RunReport, batches <-chan []models.Observation) error {
	for batch := range batches {
		// The wire caps records per request below the hashing batch
		// size; split here so transport limits stay out of the hasher.
		for offset := 0; offset < len(batch); offset += config.WireBatchLimit {
			end := offset + config.WireBatchLimit
			if end > len(batch) {
				end = len(batch)
			}
			if err := c.uploadOne(ctx, state, report, batch[offset:end]); err != nil {
				return err
			}
		}
	}
	return nil
}

// uploadOne sends a single wire batch and, on confirmation, advances and
// saves the state.
func (c *Controller) uploadOne(ctx context.Context, state *scanstate.State, report *RunReport, records []models.Observation) error {
	var bytes int64
	for i := range records {
		bytes += records[i].SizeBytes
	}

	req := &models.IngestRequest{
		HostName: hostname(),
		MAC:      primaryMAC(),
		Tag:      c.cfg.Tag,
		Records:  records,
	}

	result, err := c.client.UploadBatch(ctx, req)
	if err != nil {
		outcome := journal.OutcomeFailed
		var permanent *uploader.PermanentError
		if errors.As(err, &permanent) {
			outcome = journal.OutcomeRejected
		}
		c.journal(ctx, journal.BatchAttempt{
			Records: len(records), Bytes: bytes, Outcome: outcome, Detail: err.Error(),
		})
		return fmt.Errorf("upload batch of %d: %w", len(records), err)
	}

	state.MarkConfirmed(records)
	if err := state.Save(); err != nil {
		return fmt.Errorf("save state after confirmed batch: %w", err)
	}

	report.Batches++
	report.Uploaded += len(records)
	report.UploadedBytes += bytes
	report.Changed += len(result.Changed)

	c.journal(ctx, journal.BatchAttempt{
		Records: len(records), Bytes: bytes, Outcome: journal.OutcomeConfirmed,
	})
	return nil
}

// journal records an attempt, best-effort.
func (c *Controller) journal(ctx context.Context, attempt journal.BatchAttempt) {
	if c.attempts == nil {
		return
	}
	attempt.Schedule = c.schedule
	if err := c.attempts.Record(ctx, attempt); err != nil {
		logging.Warn().Err(err).Msg("Journal write failed")
	}
}
