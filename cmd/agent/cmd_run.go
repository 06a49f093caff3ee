// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/custodia/internal/controller"
	"github.com/tomtom215/custodia/internal/logging"
)

var (
	runQuotaGB    float64
	runStatePath  string
	daemonPollSec int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scan-and-upload pass now",
	Long: `Walks the configured scan roots, hashes candidates in staleness
order, and uploads batches to the server. Scan state advances only for
batches the server confirmed. A quota of 0 means unbounded.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if runStatePath != "" {
			cfg.StatePath = runStatePath
		}

		state, release, err := lockedState(cfg)
		if err != nil {
			return err
		}
		defer release()

		c, closeJournal, err := buildController(cfg)
		if err != nil {
			return err
		}
		defer closeJournal()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		report, err := c.RunOnce(ctx, state, runQuotaGB)
		if report != nil {
			if printErr := printJSON(report); printErr != nil {
				logging.Warn().Err(printErr).Msg("Failed to print run report")
			}
		}
		return err
	},
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Poll the schedule and run due quota windows",
	Long: `Stays resident and fires each configured schedule_quota_gb window
at most once per calendar day. The state lock is held for the daemon's
whole lifetime.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if daemonPollSec > 0 {
			cfg.DaemonPollSec = daemonPollSec
		}

		state, release, err := lockedState(cfg)
		if err != nil {
			return err
		}
		defer release()

		c, closeJournal, err := buildController(cfg)
		if err != nil {
			return err
		}
		defer closeJournal()

		daemon, err := controller.NewDaemon(c)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := daemon.Run(ctx, state); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	runCmd.Flags().Float64Var(&runQuotaGB, "quota-gb", 0, "upload quota for this run in GB (0 = unbounded)")
	runCmd.Flags().StringVar(&runStatePath, "state", "", "override the state file path")
	daemonCmd.Flags().IntVar(&daemonPollSec, "poll-sec", 0, "override the schedule poll interval in seconds")
}
