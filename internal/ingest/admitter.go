// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package ingest

import (
	"context"
	"time"

	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/metrics"
	"github.com/tomtom215/custodia/internal/models"
)

// Identity is the authenticated machine identity a batch is admitted under.
// It comes from the token lookup, never from the request body.
type Identity struct {
	MachineID   int64
	MachineName string
}

// RecordReader is the durable-store read surface the admitter needs: tracker
// seeding and duplicate detection.
type RecordReader interface {
	LatestSHAByPath(ctx context.Context, machineName string, paths []string) (map[string]string, error)
	DuplicateSHAs(ctx context.Context, shas []string) ([]models.DuplicateEntry, error)
}

// ChangeTracker is the per-path last-hash cache consulted at admission.
type ChangeTracker interface {
	Lookup(machineName string, paths []string) (map[string]string, error)
	Prime(machineName string, hashes map[string]string) error
	Update(machineName string, hashes map[string]string) error
}

// AdmissionPublisher receives one event per admitted batch.
type AdmissionPublisher interface {
	PublishAdmission(event models.AdmissionEvent) error
}

// Admitter validates, enriches, and queues authenticated batches.
type Admitter struct {
	buffer    *Buffer
	store     RecordReader
	tracker   ChangeTracker
	publisher AdmissionPublisher // may be nil when the live feed is disabled
}

// NewAdmitter wires the admission path. publisher may be nil.
func NewAdmitter(buffer *Buffer, store RecordReader, tracker ChangeTracker, publisher AdmissionPublisher) *Admitter {
	return &Admitter{
		buffer:    buffer,
		store:     store,
		tracker:   tracker,
		publisher: publisher,
	}
}

// Admit enriches the batch and queues it all-or-nothing.
//
// Enrichment happens here, at admission: ingested_at is the server's
// current UTC minute, urn derives from the resolved machine name, and
// change_type compares each record against the tracker's last known hash
// for its path. On ErrBufferFull nothing is queued and the tracker is left
// untouched, so a retried batch classifies identically.
func (a *Admitter) Admit(ctx context.Context, ident Identity, clientIP string, req *models.IngestRequest) (*models.IngestResult, error) {
	ingestedAt := time.Now().UTC().Truncate(time.Minute)

	known, err := a.lastKnownHashes(ctx, ident.MachineName, req.Records)
	if err != nil {
		// Change tagging degrades to "new" rather than failing the
		// batch; the durable append must not depend on the cache.
		logging.Warn().Err(err).Str("machine", ident.MachineName).
			Msg("Change tracker lookup failed; tagging batch without history")
		known = map[string]string{}
	}

	records := make([]*models.FileRecord, 0, len(req.Records))
	changed := make([]models.ChangeEntry, 0)
	finalHashes := make(map[string]string, len(req.Records))

	for i := range req.Records {
		obs := &req.Records[i]
		ext := models.NormalizeExtension(obs.Extension)
		scanDate := models.ScanDate(obs.ScanTS)

		changeType := models.ChangeNew
		if prev, ok := known[obs.FilePath]; ok {
			if prev == obs.SHA256 {
				changeType = models.ChangeUnchanged
			} else {
				changeType = models.ChangeChanged
				changed = append(changed, models.ChangeEntry{
					FilePath:       obs.FilePath,
					PreviousSHA256: prev,
					NewSHA256:      obs.SHA256,
				})
			}
		}
		// Later records in the batch compare against earlier ones for
		// the same path.
		known[obs.FilePath] = obs.SHA256
		finalHashes[obs.FilePath] = obs.SHA256

		records = append(records, &models.FileRecord{
			MachineName: ident.MachineName,
			MachineID:   ident.MachineID,
			MAC:         req.MAC,
			HostName:    req.HostName,
			Tag:         req.Tag,
			ClientIP:    clientIP,
			FilePath:    obs.FilePath,
			FileName:    obs.FileName,
			Extension:   ext,
			SizeBytes:   obs.SizeBytes,
			SHA256:      obs.SHA256,
			ScanTS:      obs.ScanTS,
			IngestedAt:  ingestedAt,
			ChangeType:  changeType,
			URN:         models.MakeURN(ident.MachineName, obs.FileName, ext, obs.SizeBytes, scanDate),
		})
	}

	if err := a.buffer.Admit(records); err != nil {
		metrics.RecordRejection("overload")
		return nil, err
	}

	if err := a.tracker.Update(ident.MachineName, finalHashes); err != nil {
		logging.Warn().Err(err).Str("machine", ident.MachineName).
			Msg("Change tracker update failed")
	}

	metrics.RecordAdmission(len(records))

	result := &models.IngestResult{
		Inserted:   len(records),
		Changed:    changed,
		Duplicates: a.duplicates(ctx, records),
	}

	if a.publisher != nil {
		event := models.AdmissionEvent{
			MachineName: ident.MachineName,
			Records:     len(records),
			Changed:     len(changed),
			IngestedAt:  ingestedAt,
		}
		if err := a.publisher.PublishAdmission(event); err != nil {
			logging.Warn().Err(err).Msg("Failed to publish admission event")
		}
	}

	return result, nil
}

// lastKnownHashes returns the last known hash per path, seeding tracker
// misses from the durable store.
func (a *Admitter) lastKnownHashes(ctx context.Context, machineName string, observations []models.Observation) (map[string]string, error) {
	paths := make([]string, 0, len(observations))
	seen := make(map[string]struct{}, len(observations))
	for i := range observations {
		p := observations[i].FilePath
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			paths = append(paths, p)
		}
	}

	known, err := a.tracker.Lookup(machineName, paths)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, p := range paths {
		if _, ok := known[p]; !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return known, nil
	}

	latest, err := a.store.LatestSHAByPath(ctx, machineName, missing)
	if err != nil {
		return nil, err
	}
	if len(latest) > 0 {
		if err := a.tracker.Prime(machineName, latest); err != nil {
			logging.Warn().Err(err).Str("machine", machineName).
				Msg("Change tracker prime failed")
		}
		for p, sha := range latest {
			known[p] = sha
		}
	}
	return known, nil
}

// duplicates reports which of the batch's hashes appear in the durable
// store under more than one name or path. Best-effort: a store error
// yields an empty list, never a failed admission.
func (a *Admitter) duplicates(ctx context.Context, records []*models.FileRecord) []models.DuplicateEntry {
	shas := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.SHA256]; !ok {
			seen[rec.SHA256] = struct{}{}
			shas = append(shas, rec.SHA256)
		}
	}

	dups, err := a.store.DuplicateSHAs(ctx, shas)
	if err != nil {
		logging.Warn().Err(err).Msg("Duplicate hash query failed")
		return []models.DuplicateEntry{}
	}
	if dups == nil {
		dups = []models.DuplicateEntry{}
	}
	return dups
}
