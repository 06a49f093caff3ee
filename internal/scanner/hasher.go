// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/models"
)

// scanTSLayout stamps observations at microsecond precision so records
// hashed within the same second still order correctly.
const scanTSLayout = "2006-01-02T15:04:05.000000Z07:00"

// hashChunkSize is the streaming read size. 4 MiB keeps memory flat on
// arbitrarily large files while amortizing syscall cost.
const hashChunkSize = 4 << 20

// ErrVanished marks a candidate that disappeared between the walk and the
// hash. Vanishing is normal churn, not a scan failure.
var ErrVanished = errors.New("file vanished before hashing")

// Hasher turns candidates into observations, streaming file contents
// through SHA-256 under an optional files-per-second rate limit.
type Hasher struct {
	limiter *rate.Limiter // nil = unlimited
	buf     []byte
}

// NewHasher creates a hasher. filesPerSec <= 0 disables rate limiting.
func NewHasher(filesPerSec float64) *Hasher {
	h := &Hasher{buf: make([]byte, hashChunkSize)}
	if filesPerSec > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(filesPerSec), 1)
	}
	return h
}

// Hash produces the observation for one candidate. Returns ErrVanished when
// the file is gone or shrunk away mid-read; context errors abort the scan.
// The observation's scan_ts is the UTC completion time of the hash.
func (h *Hasher) Hash(ctx context.Context, c Candidate) (models.Observation, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return models.Observation{}, err
		}
	} else if err := ctx.Err(); err != nil {
		return models.Observation{}, err
	}

	sum, size, err := h.hashFile(c.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Debug().Str("path", c.Path).Msg("File vanished before hashing")
			return models.Observation{}, ErrVanished
		}
		return models.Observation{}, fmt.Errorf("hash %s: %w", c.Path, err)
	}

	return models.Observation{
		FilePath:  c.Path,
		FileName:  c.Name,
		Extension: models.NormalizeExtension(c.Extension),
		SizeBytes: size,
		SHA256:    sum,
		ScanTS:    time.Now().UTC().Format(scanTSLayout),
	}, nil
}

// hashFile streams the file through SHA-256 and returns the hex digest and
// the byte count actually hashed. The hashed size is authoritative over the
// walk-time size, which can be stale for files written during the scan.
func (h *Hasher) hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logging.Warn().Str("path", path).Err(cerr).Msg("Failed to close hashed file")
		}
	}()

	digest := sha256.New()
	size, err := io.CopyBuffer(digest, f, h.buf)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(digest.Sum(nil)), size, nil
}
