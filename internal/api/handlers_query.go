// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/custodia/internal/database"
	"github.com/tomtom215/custodia/internal/history"
	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/models"
)

// RecordView is the query-endpoint projection of a file record: the raw
// byte count plus its human-readable form.
type RecordView struct {
	ID          int64  `json:"id"`
	MachineName string `json:"machine_name"`
	HostName    string `json:"host_name,omitempty"`
	Tag         string `json:"tag,omitempty"`
	FilePath    string `json:"file_path"`
	FileName    string `json:"file_name"`
	Extension   string `json:"extension"`
	SizeBytes   int64  `json:"size_bytes"`
	SizeHuman   string `json:"size_human"`
	SHA256      string `json:"sha256"`
	ScanTS      string `json:"scan_ts"`
	IngestedAt  string `json:"ingested_at"`
	ChangeType  string `json:"change_type"`
	URN         string `json:"urn"`
}

// fileQueryParams carries the validated /api/query/file inputs.
type fileQueryParams struct {
	SHA256 string `validate:"required,sha256hex"`
	Limit  int    `validate:"min=0"`
	Dedupe bool
}

// machineQueryParams carries the validated /api/query/machine inputs.
type machineQueryParams struct {
	MachineName string `validate:"required,min=1,max=255"`
	SHA256      string `validate:"omitempty,sha256hex"`
	Limit       int    `validate:"min=0"`
	Dedupe      bool
}

// nameQueryParams carries the validated /api/query/name inputs.
type nameQueryParams struct {
	Fragment string `validate:"required,min=1,max=512"`
	Limit    int    `validate:"min=0"`
}

// graphParams carries the validated /api/graph/sha256 inputs.
type graphParams struct {
	SHA256 string `validate:"required,sha256hex"`
	Limit  int    `validate:"min=0"`
}

// syncBeforeRead pushes queued records into the durable store so reads see
// recent admissions. Best-effort: a flush failure degrades freshness, it
// does not fail the query.
func (h *Handler) syncBeforeRead(r *http.Request) {
	if h.flusher == nil {
		return
	}
	if err := h.flusher.SyncFlush(r.Context()); err != nil {
		logging.Warn().Err(err).Msg("Pre-read flush failed; query may miss buffered records")
	}
}

// Machines lists every machine that has contributed records.
func (h *Handler) Machines(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.syncBeforeRead(r)

	machines, err := h.store.ListMachines(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "machine list query failed", err)
		return
	}
	if machines == nil {
		machines = []string{}
	}

	respondSuccess(w, map[string]interface{}{"machines": machines}, start)
}

// QueryFile returns every observation of a content hash across all
// machines, plus the total occurrence count for the hash. dedupe (default
// true) keeps the first occurrence per (file_path, file_name).
func (h *Handler) QueryFile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	params := fileQueryParams{
		SHA256: r.URL.Query().Get("sha256"),
		Limit:  getIntParam(r, "limit", 0),
		Dedupe: getBoolParam(r, "dedupe", true),
	}
	if apiErr := validateRequest(&params); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	h.syncBeforeRead(r)

	limit := database.ClampLimit(params.Limit, database.DefaultFileQueryLimit, database.MaxFileQueryLimit)
	records, err := h.store.RecordsBySHA256(r.Context(), params.SHA256, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "file query failed", err)
		return
	}

	count, err := h.store.SHACount(r.Context(), params.SHA256)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "occurrence count failed", err)
		return
	}

	views := toViews(records)
	if params.Dedupe {
		views = dedupeByPlacement(records)
	}

	respondSuccess(w, map[string]interface{}{
		"sha256":       params.SHA256,
		"sha256_count": count,
		"records":      views,
	}, start)
}

// QueryMachine returns a machine's records, newest first, optionally
// narrowed to one hash. dedupe (default true) keeps the first occurrence
// per (file_path, file_name).
func (h *Handler) QueryMachine(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	params := machineQueryParams{
		MachineName: r.URL.Query().Get("machine_name"),
		SHA256:      r.URL.Query().Get("sha256"),
		Limit:       getIntParam(r, "limit", 0),
		Dedupe:      getBoolParam(r, "dedupe", true),
	}
	if apiErr := validateRequest(&params); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	h.syncBeforeRead(r)

	limit := database.ClampLimit(params.Limit, database.DefaultMachineQueryLimit, database.MaxMachineQueryLimit)
	records, err := h.store.RecordsByMachine(r.Context(), params.MachineName, params.SHA256, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "machine query failed", err)
		return
	}

	views := toViews(records)
	if params.Dedupe {
		views = dedupeByPlacement(records)
	}

	respondSuccess(w, map[string]interface{}{
		"machine_name": params.MachineName,
		"records":      views,
	}, start)
}

// QueryName returns records whose file name contains the fragment,
// case-insensitive.
func (h *Handler) QueryName(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	params := nameQueryParams{
		Fragment: r.URL.Query().Get("fragment"),
		Limit:    getIntParam(r, "limit", 0),
	}
	if apiErr := validateRequest(&params); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	h.syncBeforeRead(r)

	limit := database.ClampLimit(params.Limit, database.DefaultNameQueryLimit, database.MaxNameQueryLimit)
	records, err := h.store.RecordsByNameSubstring(r.Context(), params.Fragment, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "name query failed", err)
		return
	}

	respondSuccess(w, map[string]interface{}{
		"fragment": params.Fragment,
		"records":  toViews(records),
	}, start)
}

// Graph renders the hash history chain in the requested format. Text
// formats are served raw; the json format returns the structured payload
// without the APIResponse envelope so it round-trips as a graph document.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	params := graphParams{
		SHA256: r.URL.Query().Get("sha256"),
		Limit:  getIntParam(r, "limit", 0),
	}
	if apiErr := validateRequest(&params); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	format, err := history.ParseFormat(r.URL.Query().Get("fmt"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	h.syncBeforeRead(r)

	limit := database.ClampLimit(params.Limit, database.DefaultGraphLimit, database.MaxGraphLimit)
	records, err := h.store.RecordsBySHA256(r.Context(), params.SHA256, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "graph query failed", err)
		return
	}

	rendered, err := history.Render(history.BuildChain(params.SHA256, records), format)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "graph render failed", err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(rendered)); err != nil {
		logging.Error().Err(err).Msg("Failed to write graph response")
	}
}

// Stats reports durable-store totals plus current buffer lag.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	stats, err := h.store.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "stats query failed", err)
		return
	}
	if h.buffer != nil {
		stats.BufferedRecords = h.buffer.Pending()
	}

	respondSuccess(w, stats, start)
}

// toViews projects records into the response shape.
func toViews(records []*models.FileRecord) []RecordView {
	views := make([]RecordView, 0, len(records))
	for _, rec := range records {
		views = append(views, RecordView{
			ID:          rec.ID,
			MachineName: rec.MachineName,
			HostName:    rec.HostName,
			Tag:         rec.Tag,
			FilePath:    rec.FilePath,
			FileName:    rec.FileName,
			Extension:   rec.Extension,
			SizeBytes:   rec.SizeBytes,
			SizeHuman:   models.FormatBytes(rec.SizeBytes),
			SHA256:      rec.SHA256,
			ScanTS:      rec.ScanTS,
			IngestedAt:  rec.IngestedAt.UTC().Format(time.RFC3339),
			ChangeType:  string(rec.ChangeType),
			URN:         rec.URN,
		})
	}
	return views
}

// dedupeByPlacement keeps the first occurrence per (file_path, file_name)
// placement, so repeated observations of the same placement collapse to one
// row regardless of which machine reported them.
func dedupeByPlacement(records []*models.FileRecord) []RecordView {
	type placement struct {
		path, name string
	}
	seen := make(map[placement]struct{}, len(records))
	kept := make([]*models.FileRecord, 0, len(records))
	for _, rec := range records {
		key := placement{rec.FilePath, rec.FileName}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, rec)
	}
	return toViews(kept)
}
