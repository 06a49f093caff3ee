// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Command agent is the Custodia scanning agent. It walks the configured
// roots, hashes candidate files, and uploads observation batches to the
// ingest server, confirming scan state only for batches the server
// accepted.
//
// Machine-readable output (reports, state, journal rows) goes to stdout as
// JSON; logs go to stderr.
package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/custodia/internal/config"
	"github.com/tomtom215/custodia/internal/controller"
	"github.com/tomtom215/custodia/internal/journal"
	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/scanstate"
	"github.com/tomtom215/custodia/internal/uploader"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "custodia-agent",
	Short:         "Custodia file scanning and upload agent",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the agent version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("custodia-agent %s\n", version)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to agent config file (default: search agent.yaml, /etc/custodia/agent.yaml)")

	rootCmd.AddCommand(
		runCmd,
		daemonCmd,
		dryRunCmd,
		bucketsCmd,
		stateCmd,
		journalCmd,
		configCmd,
		versionCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "custodia-agent: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the agent config from --config or the default search
// paths and configures logging from it.
func loadConfig() (*config.AgentConfig, error) {
	var cfg *config.AgentConfig
	var err error
	if configPath != "" {
		cfg, err = config.LoadAgentWithPath(configPath)
	} else {
		cfg, err = config.LoadAgent()
	}
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Timestamp: true,
	})
	return cfg, nil
}

// lockedState loads the scan state and takes the run lock beside it. The
// caller must call release.
func lockedState(cfg *config.AgentConfig) (*scanstate.State, func(), error) {
	state, err := scanstate.Load(cfg.StatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("load state: %w", err)
	}
	lock, err := scanstate.Acquire(cfg.StatePath + ".lock")
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := lock.Release(); err != nil {
			logging.Warn().Err(err).Msg("Failed to release state lock")
		}
	}
	return state, release, nil
}

// buildController wires the uploader and optional journal into a
// controller. The returned closer is nil when no journal is configured.
func buildController(cfg *config.AgentConfig) (*controller.Controller, func(), error) {
	client := uploader.New(cfg)

	var attempts controller.Attempts
	closer := func() {}
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		attempts = j
		closer = func() {
			if err := j.Close(); err != nil {
				logging.Warn().Err(err).Msg("Failed to close journal")
			}
		}
	}

	return controller.New(cfg, client, attempts), closer, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
