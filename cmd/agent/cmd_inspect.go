// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/custodia/internal/journal"
	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/models"
	"github.com/tomtom215/custodia/internal/scanner"
	"github.com/tomtom215/custodia/internal/scanstate"
)

var (
	dryRunListFiles bool
	journalLimit    int
)

// dryRunReport is the dry-run command's stdout document.
type dryRunReport struct {
	Walked     int                  `json:"walked"`
	TotalBytes int64                `json:"total_bytes"`
	TotalHuman string               `json:"total_human"`
	Buckets    []scanner.BucketStat `json:"buckets"`
	Files      []string             `json:"files,omitempty"`
}

var dryRunCmd = &cobra.Command{
	Use:   "dry-run",
	Short: "Walk the scan roots and report what a run would hash, without hashing or uploading",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		state, err := scanstate.Load(cfg.StatePath)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}

		policy := scanner.NewPolicy(cfg)
		candidates, err := scanner.Walk(cmd.Context(), cfg.ScanPaths, policy)
		if err != nil {
			return fmt.Errorf("walk scan roots: %w", err)
		}

		lastScanned := state.LastScanned()
		scanner.SortByStaleness(candidates, lastScanned)

		report := dryRunReport{
			Walked:  len(candidates),
			Buckets: scanner.BucketStats(candidates, lastScanned),
		}
		for _, c := range candidates {
			report.TotalBytes += c.SizeBytes
			if dryRunListFiles {
				report.Files = append(report.Files, c.Path)
			}
		}
		report.TotalHuman = models.FormatBytes(report.TotalBytes)

		return printJSON(report)
	},
}

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "Show the staleness buckets a run would process, stalest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		state, err := scanstate.Load(cfg.StatePath)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}

		candidates, err := scanner.Walk(cmd.Context(), cfg.ScanPaths, scanner.NewPolicy(cfg))
		if err != nil {
			return fmt.Errorf("walk scan roots: %w", err)
		}

		return printJSON(scanner.BucketStats(candidates, state.LastScanned()))
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect the persisted scan state",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the scan state as JSON",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		state, err := scanstate.Load(cfg.StatePath)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		return printJSON(state)
	},
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Print recent upload batch attempts from the journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.JournalPath == "" {
			return fmt.Errorf("no journal_path configured")
		}

		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer func() {
			if err := j.Close(); err != nil {
				logging.Warn().Err(err).Msg("Failed to close journal")
			}
		}()

		recent, err := j.Recent(cmd.Context(), journalLimit)
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}
		return printJSON(recent)
	},
}

func init() {
	dryRunCmd.Flags().BoolVar(&dryRunListFiles, "list", false, "list every candidate file path")
	journalCmd.Flags().IntVar(&journalLimit, "limit", 20, "maximum attempts to show")
	stateCmd.AddCommand(stateShowCmd)
}
