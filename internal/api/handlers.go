// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/custodia/internal/ingest"
	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/models"
)

// maxIngestBodyBytes bounds one ingest request body. A wire batch holds at
// most 30 records; 4 MiB leaves generous headroom for long paths.
const maxIngestBodyBytes = 4 << 20

// Admitter is the ingest admission surface the handler calls.
type Admitter interface {
	Admit(ctx context.Context, ident ingest.Identity, clientIP string, req *models.IngestRequest) (*models.IngestResult, error)
}

// Flusher forces queued records into the durable store before a read.
type Flusher interface {
	SyncFlush(ctx context.Context) error
}

// RecordStore is the durable-store read surface the query handlers use.
type RecordStore interface {
	RecordsBySHA256(ctx context.Context, sha256 string, limit int) ([]*models.FileRecord, error)
	RecordsByMachine(ctx context.Context, machineName, sha256 string, limit int) ([]*models.FileRecord, error)
	RecordsByNameSubstring(ctx context.Context, fragment string, limit int) ([]*models.FileRecord, error)
	ListMachines(ctx context.Context) ([]string, error)
	SHACount(ctx context.Context, sha256 string) (int64, error)
	Stats(ctx context.Context) (*models.StoreStats, error)
}

// Handler holds the HTTP handler dependencies.
type Handler struct {
	store    RecordStore
	admitter Admitter
	flusher  Flusher
	buffer   *ingest.Buffer
}

// NewHandler wires the handler set.
func NewHandler(store RecordStore, admitter Admitter, flusher Flusher, buffer *ingest.Buffer) *Handler {
	return &Handler{
		store:    store,
		admitter: admitter,
		flusher:  flusher,
		buffer:   buffer,
	}
}

// Health serves the liveness probe. The body is part of the agent wire
// contract: agents hello against it and expect exactly this shape.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Ingest admits one authenticated batch. The success body is the bare
// IngestResult, not the APIResponse envelope; agents parse it directly.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR",
			"request reached ingest without an authenticated identity", nil)
		return
	}

	var req models.IngestRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"request body is not a valid ingest batch", err)
		return
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	result, err := h.admitter.Admit(r.Context(), ident, clientIP(r), &req)
	if err != nil {
		if errors.Is(err, ingest.ErrBufferFull) {
			respondError(w, http.StatusServiceUnavailable, "BUFFER_FULL",
				ingest.OverloadMessage, nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
			"batch admission failed", err)
		return
	}

	logging.Info().Str("machine", sanitizeLogValue(ident.MachineName)).
		Int("records", result.Inserted).Int("changed", len(result.Changed)).
		Msg("Admitted ingest batch")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logging.Error().Err(err).Msg("Failed to write ingest response")
	}
}

// respondValidationError reports a rejected batch with field details.
func respondValidationError(w http.ResponseWriter, apiErr *models.APIError) {
	respondJSON(w, http.StatusBadRequest, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    apiErr,
	})
}

// clientIP returns the request's remote address without the port. RealIP
// middleware has already folded X-Forwarded-For into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
