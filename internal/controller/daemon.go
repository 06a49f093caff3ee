// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/scanstate"
	"github.com/tomtom215/custodia/internal/schedule"
)

// Daemon polls the schedule and runs due windows. The state lock is held
// for the daemon's whole lifetime, so a concurrent manual run fails fast
// instead of corrupting state.
type Daemon struct {
	controller *Controller
	windows    []schedule.Window
	poll       time.Duration
}

// NewDaemon creates a daemon from the controller's config. Fails when the
// config has no schedule windows, since a windowless daemon would never do
// anything.
func NewDaemon(c *Controller) (*Daemon, error) {
	windows, err := schedule.Windows(c.cfg.ScheduleQuotaGB)
	if err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("daemon mode requires schedule_quota_gb windows")
	}
	return &Daemon{
		controller: c,
		windows:    windows,
		poll:       time.Duration(c.cfg.DaemonPollSec) * time.Second,
	}, nil
}

// Run polls until the context ends. Each window fires at most once per
// calendar day; the firing date is persisted before the run starts, so a
// window that fails does not refire in a tight loop for the rest of its
// minute.
func (d *Daemon) Run(ctx context.Context, state *scanstate.State) error {
	logging.Info().Int("windows", len(d.windows)).Dur("poll", d.poll).Msg("Daemon started")

	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for {
		d.fireDue(ctx, state, time.Now())

		select {
		case <-ctx.Done():
			logging.Info().Msg("Daemon stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// fireDue runs the window due at now, if any.
func (d *Daemon) fireDue(ctx context.Context, state *scanstate.State, now time.Time) {
	window := schedule.Due(d.windows, state.ScheduleLastRun, now)
	if window == nil {
		return
	}

	state.MarkScheduleRun(window.Key, schedule.DateOf(now))
	if err := state.Save(); err != nil {
		logging.Error().Err(err).Str("window", window.Key).
			Msg("Failed to persist window firing; skipping run")
		return
	}

	logging.Info().Str("window", window.Key).Float64("quota_gb", window.QuotaGB).
		Msg("Schedule window firing")

	d.controller.SetScheduleKey(window.Key)
	report, err := d.controller.RunOnce(ctx, state, window.QuotaGB)
	d.controller.SetScheduleKey("")
	if err != nil {
		logging.Error().Err(err).Str("window", window.Key).Msg("Scheduled run failed")
		return
	}
	logging.Info().Str("window", window.Key).Int("uploaded", report.Uploaded).
		Int64("bytes", report.UploadedBytes).Msg("Scheduled run complete")
}
