// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func fptr(v float64) *float64 { return &v }

func validAgentConfig() *AgentConfig {
	cfg := defaultAgentConfig()
	cfg.ServerURL = "http://localhost:8571"
	cfg.AuthToken = "secret"
	return cfg
}

func TestAgentConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AgentConfig)
		wantErr string
	}{
		{"valid", func(*AgentConfig) {}, ""},
		{"missing server_url", func(c *AgentConfig) { c.ServerURL = "" }, "server_url"},
		{"malformed server_url", func(c *AgentConfig) { c.ServerURL = "not-a-url" }, "server_url"},
		{"missing auth_token", func(c *AgentConfig) { c.AuthToken = " " }, "auth_token"},
		{"no scan paths", func(c *AgentConfig) { c.ScanPaths = nil }, "scan_paths"},
		{"zero batch size", func(c *AgentConfig) { c.MaxBatchRecords = 0 }, "max_batch_records"},
		{"negative rate limit", func(c *AgentConfig) { c.ScanRateLimit = -1 }, "scan_rate_limit"},
		{"bad schedule key", func(c *AgentConfig) {
			c.ScheduleQuotaGB = map[string]float64{"Monday0910": 1}
		}, "schedule_quota_gb"},
		{"negative quota", func(c *AgentConfig) {
			c.ScheduleQuotaGB = map[string]float64{"Mon0910": -1}
		}, "schedule_quota_gb"},
		{"inverted thresholds", func(c *AgentConfig) {
			c.SizeThresholdKBByExt = map[string]SizeThreshold{
				".log": {LowThereHold: fptr(100), UpperThereHold: fptr(10)},
			}
		}, "lowtherehold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validAgentConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeCanonicalizesExtensions(t *testing.T) {
	cfg := validAgentConfig()
	cfg.ExcludeExtensions = []string{"TMP", ".Log", " bak "}
	cfg.SizeThresholdKBByExt = map[string]SizeThreshold{
		"LOG": {LowAlias: fptr(10), UpperThereHold: fptr(1024)},
	}

	cfg.Normalize()

	want := []string{".tmp", ".log", ".bak"}
	for i, ext := range cfg.ExcludeExtensions {
		if ext != want[i] {
			t.Errorf("ExcludeExtensions[%d] = %q, want %q", i, ext, want[i])
		}
	}

	// The threshold key is canonicalized and the corrected-spelling alias
	// is folded into the canonical field.
	threshold, ok := cfg.SizeThresholdKBByExt[".log"]
	if !ok {
		t.Fatalf("threshold key not canonicalized, keys = %v", cfg.SizeThresholdKBByExt)
	}
	if threshold.LowThereHold == nil || *threshold.LowThereHold != 10 {
		t.Errorf("LowThereHold = %v, want alias folded to 10", threshold.LowThereHold)
	}
	if threshold.UpperThereHold == nil || *threshold.UpperThereHold != 1024 {
		t.Errorf("UpperThereHold = %v, want 1024", threshold.UpperThereHold)
	}
}

func TestThresholdCanonicalSpellingWins(t *testing.T) {
	threshold := SizeThreshold{LowThereHold: fptr(5), LowAlias: fptr(50)}
	if got := threshold.Low(); got == nil || *got != 5 {
		t.Errorf("Low() = %v, want canonical spelling 5 over alias", got)
	}
}

func TestBatchSizeCappedAtWireLimit(t *testing.T) {
	tests := []struct {
		configured int
		want       int
	}{
		{500, WireBatchLimit},
		{30, 30},
		{10, 10},
	}
	for _, tt := range tests {
		cfg := validAgentConfig()
		cfg.MaxBatchRecords = tt.configured
		if got := cfg.BatchSize(); got != tt.want {
			t.Errorf("BatchSize() with max %d = %d, want %d", tt.configured, got, tt.want)
		}
	}
}

func TestLoadAgentWithPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	yaml := `
server_url: http://scanhost:8571
auth_token: secret
scan_paths:
  - /data
  - /srv
exclude_extensions:
  - TMP
size_threshold_kb_by_ext:
  .log:
    lowtherehold: 10
    uppertherehold: 1024
schedule_quota_gb:
  Mon0910: 2.5
journal_path: /var/lib/custodia/journal.db
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadAgentWithPath(path)
	if err != nil {
		t.Fatalf("LoadAgentWithPath() error = %v", err)
	}

	if cfg.ServerURL != "http://scanhost:8571" {
		t.Errorf("ServerURL = %q, want http://scanhost:8571", cfg.ServerURL)
	}
	if len(cfg.ScanPaths) != 2 {
		t.Errorf("ScanPaths = %v, want 2 roots", cfg.ScanPaths)
	}
	if len(cfg.ExcludeExtensions) != 1 || cfg.ExcludeExtensions[0] != ".tmp" {
		t.Errorf("ExcludeExtensions = %v, want [.tmp]", cfg.ExcludeExtensions)
	}
	if cfg.ScheduleQuotaGB["Mon0910"] != 2.5 {
		t.Errorf("ScheduleQuotaGB[Mon0910] = %v, want 2.5", cfg.ScheduleQuotaGB["Mon0910"])
	}
	if threshold, ok := cfg.SizeThresholdKBByExt[".log"]; !ok || threshold.Low() == nil || *threshold.Low() != 10 {
		t.Errorf("SizeThresholdKBByExt[.log] = %+v, want low 10", cfg.SizeThresholdKBByExt[".log"])
	}
	// Defaults survive the file layer.
	if cfg.MaxBatchRecords != 500 {
		t.Errorf("MaxBatchRecords = %d, want default 500", cfg.MaxBatchRecords)
	}
}

func TestLoadAgentWithPathRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	if err := os.WriteFile(path, []byte("auth_token: secret\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := LoadAgentWithPath(path); err == nil {
		t.Error("LoadAgentWithPath() = nil error, want validation failure without server_url")
	}
}
