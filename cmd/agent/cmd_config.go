// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/custodia/internal/config"
)

var (
	verifyDir       string
	verifyPattern   string
	verifyMinGapMin int
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate agent configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the config and report whether it is usable",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Echo the normalized config so operators see folded threshold
		// aliases and canonicalized extensions. The token stays out of
		// the output.
		echo := *cfg
		echo.AuthToken = "<redacted>"
		if err := printJSON(echo); err != nil {
			return err
		}
		fmt.Printf("configuration ok: %d scan roots, %d schedule windows\n",
			len(cfg.ScanPaths), len(cfg.ScheduleQuotaGB))
		return nil
	},
}

// verifyReport is the config verify stdout document.
type verifyReport struct {
	Configs   []string `json:"configs"`
	Windows   int      `json:"windows"`
	Conflicts []string `json:"conflicts"`
}

var configVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check schedule windows across several config files for collisions",
	Long: `Loads every agent config matching the pattern under the directory
and flags windows from different files on the same weekday closer together
than the minimum gap. Multiple agent identities on one host should not walk
the disk back to back.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		paths, err := config.DiscoverAgentConfigs(verifyDir, verifyPattern)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no config files matching %q under %s", verifyPattern, verifyDir)
		}

		entries, err := config.CollectSchedules(paths)
		if err != nil {
			return err
		}
		conflicts := config.VerifySchedules(entries, time.Duration(verifyMinGapMin)*time.Minute)

		report := verifyReport{
			Configs:   paths,
			Windows:   len(entries),
			Conflicts: make([]string, 0, len(conflicts)),
		}
		for _, c := range conflicts {
			report.Conflicts = append(report.Conflicts, c.String())
		}
		if err := printJSON(report); err != nil {
			return err
		}

		if len(conflicts) > 0 {
			return fmt.Errorf("%d schedule conflict(s) found", len(conflicts))
		}
		return nil
	},
}

func init() {
	configVerifyCmd.Flags().StringVar(&verifyDir, "dir", ".", "directory holding agent config files")
	configVerifyCmd.Flags().StringVar(&verifyPattern, "pattern", "*.yaml", "glob pattern for config files")
	configVerifyCmd.Flags().IntVar(&verifyMinGapMin, "min-gap-min", 30, "minimum gap in minutes between same-day windows of different configs")
	configCmd.AddCommand(configValidateCmd, configVerifyCmd)
}
