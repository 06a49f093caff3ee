// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

/*
Package uploader is the agent's HTTP client for the ingest service: a
fail-fast hello against /healthz, then authenticated batch posts to
/ingest with bounded retries and a circuit breaker.

Retry classification follows the response, not the transport alone: any
2xx with a parseable IngestResult is success, any 4xx is permanent
(retrying an invalid or unauthenticated batch cannot help), everything
else is transient. An ambiguous outcome, like a 2xx with an unparseable
body, counts as failure so the caller never confirms state it cannot
prove was recorded.
*/
package uploader

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/custodia/internal/config"
	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/models"
)

const (
	// maxAttempts is the total tries per batch, first attempt included.
	maxAttempts = 5

	// initialBackoff is the pause before the second attempt; it doubles
	// each retry.
	initialBackoff = 500 * time.Millisecond
)

// PermanentError marks a rejection that retrying cannot fix.
type PermanentError struct {
	StatusCode int
	Body       string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("server rejected batch with status %d: %s", e.StatusCode, e.Body)
}

// Client posts observation batches to the ingest service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*models.IngestResult]
}

// New creates a client from the agent config. TLS verification is on
// unless the config's insecure_skip_verify opts out.
func New(cfg *config.AgentConfig) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- operator opt-in
		logging.Warn().Msg("TLS certificate verification disabled by configuration")
	}

	breaker := gobreaker.NewCircuitBreaker[*models.IngestResult](gobreaker.Settings{
		Name:        "ingest-upload",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).
				Str("to", to.String()).Msg("Upload circuit breaker state change")
		},
	})

	return &Client{
		baseURL: cfg.ServerURL,
		token:   cfg.AuthToken,
		httpClient: &http.Client{
			Timeout:   cfg.HTTPTimeout(),
			Transport: transport,
		},
		breaker: breaker,
	}
}

// Hello verifies the server is reachable and healthy. It is fail-fast: one
// attempt, no retries, so a run against a down server aborts before any
// hashing happens.
func (c *Client) Hello(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("build hello request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hello %s: %w", c.baseURL, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hello %s: unexpected status %d", c.baseURL, resp.StatusCode)
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1024)).Decode(&health); err != nil {
		return fmt.Errorf("hello %s: unparseable health body: %w", c.baseURL, err)
	}
	if health.Status != "ok" {
		return fmt.Errorf("hello %s: server reports status %q", c.baseURL, health.Status)
	}
	return nil
}

// UploadBatch posts one batch and returns the server's admission result.
// Transient failures retry with exponential backoff up to maxAttempts
// total; 4xx rejections return a *PermanentError without further attempts.
func (c *Client) UploadBatch(ctx context.Context, req *models.IngestRequest) (*models.IngestResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(initialBackoff),
			backoff.WithMultiplier(2),
		),
		maxAttempts-1,
	), ctx)

	var result *models.IngestResult
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		res, execErr := c.breaker.Execute(func() (*models.IngestResult, error) {
			return c.postBatch(ctx, payload)
		})
		if execErr != nil {
			if permanent, ok := execErr.(*PermanentError); ok {
				return backoff.Permanent(permanent)
			}
			logging.Warn().Err(execErr).Int("attempt", attempt).
				Int("records", len(req.Records)).Msg("Batch upload attempt failed")
			return execErr
		}
		result = res
		return nil
	}, policy)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// postBatch performs one upload attempt.
func (c *Client) postBatch(ctx context.Context, payload []byte) (*models.IngestResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ingest", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build ingest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post batch: %w", err)
	}
	defer drainAndClose(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read ingest response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var result models.IngestResult
		if err := json.Unmarshal(body, &result); err != nil {
			// A 2xx the agent cannot parse is not a confirmation.
			return nil, fmt.Errorf("unparseable ingest response (status %d): %w", resp.StatusCode, err)
		}
		return &result, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &PermanentError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}

	default:
		// 503 buffer-full and other 5xx are transient; retry.
		return nil, fmt.Errorf("server status %d: %s", resp.StatusCode, truncate(string(body), 256))
	}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	_ = body.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
