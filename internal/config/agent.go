// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultAgentConfigPaths lists the paths where the agent config file is
// searched in order of priority.
var DefaultAgentConfigPaths = []string{
	"agent.yaml",
	"agent.yml",
	"/etc/custodia/agent.yaml",
	"/etc/custodia/agent.yml",
}

// WireBatchLimit is the hard per-request record cap of the ingest API.
// The agent's max_batch_records is clamped to this on the wire.
const WireBatchLimit = 30

// SizeThreshold bounds file sizes for one extension, in KB, both ends
// inclusive. A nil bound is open-ended. The canonical field names carry the
// original deployment's spelling; the corrected spellings are accepted as
// aliases and folded in by Normalize.
type SizeThreshold struct {
	LowThereHold   *float64 `koanf:"lowtherehold" json:"lowtherehold,omitempty"`
	UpperThereHold *float64 `koanf:"uppertherehold" json:"uppertherehold,omitempty"`
	LowAlias       *float64 `koanf:"lowthreshold" json:"-"`
	UpperAlias     *float64 `koanf:"upperthreshold" json:"-"`
}

// Low returns the lower bound in KB, or nil when open-ended.
func (t SizeThreshold) Low() *float64 {
	if t.LowThereHold != nil {
		return t.LowThereHold
	}
	return t.LowAlias
}

// Upper returns the upper bound in KB, or nil when open-ended.
func (t SizeThreshold) Upper() *float64 {
	if t.UpperThereHold != nil {
		return t.UpperThereHold
	}
	return t.UpperAlias
}

// AgentConfig is the scanning agent's configuration, one per identity/tag.
type AgentConfig struct {
	// ServerURL is the base URL of the ingest service.
	ServerURL string `koanf:"server_url"`

	// AuthToken is the bearer credential identifying this machine group.
	AuthToken string `koanf:"auth_token"`

	// ScanPaths are the root directories to walk. Roots that are
	// sub-paths of other roots are dropped before walking.
	// Default: ["."]
	ScanPaths []string `koanf:"scan_paths"`

	// ExcludeSubdirs lists directory names (no separator) or absolute
	// directory paths whose whole subtree is pruned.
	ExcludeSubdirs []string `koanf:"exclude_subdirs"`

	// ExcludeExtensions lists extensions to skip, normalized to
	// lower-case with a leading dot.
	ExcludeExtensions []string `koanf:"exclude_extensions"`

	// SizeThresholdKBByExt bounds file sizes per extension (keys carry
	// the leading dot). Evaluated before hashing; no entry = no bound.
	SizeThresholdKBByExt map[string]SizeThreshold `koanf:"size_threshold_kb_by_ext"`

	// ScheduleQuotaGB maps schedule keys like "Mon0910" to the upload
	// quota in GB for that window. A zero quota means unbounded.
	ScheduleQuotaGB map[string]float64 `koanf:"schedule_quota_gb"`

	// StatePath is the agent's scan state file. Default: state.json
	// beside the config file's directory conventions.
	StatePath string `koanf:"state_path"`

	// JournalPath is the sqlite upload journal. Empty disables it.
	JournalPath string `koanf:"journal_path"`

	// Tag is an optional free-form label carried on every batch.
	Tag string `koanf:"tag"`

	// FollowSymlinks hashes symlink targets instead of skipping them.
	// Default: false
	FollowSymlinks bool `koanf:"follow_symlinks"`

	// MaxBatchRecords caps records per upload batch; the wire caps it at
	// 30 regardless. Default: 500
	MaxBatchRecords int `koanf:"max_batch_records"`

	// HTTPTimeoutSec is the per-attempt network timeout. Default: 30
	HTTPTimeoutSec int `koanf:"http_timeout_sec"`

	// InsecureSkipVerify disables TLS certificate verification. This is
	// a deliberate operator opt-in for trusted-network/proxy setups, not
	// a default. Default: false
	InsecureSkipVerify bool `koanf:"insecure_skip_verify"`

	// ScanRateLimit caps hashed files per second. 0 = unlimited.
	ScanRateLimit float64 `koanf:"scan_rate_limit"`

	// DaemonPollSec is the daemon-mode schedule poll interval.
	// Default: 20
	DaemonPollSec int `koanf:"daemon_poll_sec"`

	Logging LoggingConfig `koanf:"logging"`
}

// defaultAgentConfig returns the agent defaults applied before file and env
// layers.
func defaultAgentConfig() *AgentConfig {
	return &AgentConfig{
		ScanPaths:       []string{"."},
		StatePath:       "state.json",
		MaxBatchRecords: 500,
		HTTPTimeoutSec:  30,
		DaemonPollSec:   20,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadAgent loads the agent configuration from the default search paths.
func LoadAgent() (*AgentConfig, error) {
	return LoadAgentWithPath(findConfigFile(DefaultAgentConfigPaths))
}

// LoadAgentWithPath loads the agent configuration from an explicit file.
// An empty path skips the file layer.
func LoadAgentWithPath(path string) (*AgentConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultAgentConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("CUSTODIA_", ".", agentEnvTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	if err := processSliceFields(k, agentSlicePaths); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &AgentConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// agentEnvMappings maps CUSTODIA_* environment variables to agent config
// paths. Only scalar settings are overridable from the environment.
var agentEnvMappings = map[string]string{
	"custodia_server_url":           "server_url",
	"custodia_auth_token":           "auth_token",
	"custodia_state_path":           "state_path",
	"custodia_journal_path":         "journal_path",
	"custodia_tag":                  "tag",
	"custodia_follow_symlinks":      "follow_symlinks",
	"custodia_max_batch_records":    "max_batch_records",
	"custodia_http_timeout_sec":     "http_timeout_sec",
	"custodia_insecure_skip_verify": "insecure_skip_verify",
	"custodia_scan_rate_limit":      "scan_rate_limit",
	"custodia_daemon_poll_sec":      "daemon_poll_sec",
	"custodia_scan_paths":           "scan_paths",
	"custodia_log_level":            "logging.level",
	"custodia_log_format":           "logging.format",
}

func agentEnvTransform(key string) string {
	if path, ok := agentEnvMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}

var agentSlicePaths = []string{
	"scan_paths",
	"exclude_subdirs",
	"exclude_extensions",
}

// Normalize folds threshold key aliases and canonicalizes extension
// spellings: exclude_extensions and threshold keys become lower-case with a
// leading dot.
func (c *AgentConfig) Normalize() {
	for i, ext := range c.ExcludeExtensions {
		c.ExcludeExtensions[i] = canonicalExt(ext)
	}

	if len(c.SizeThresholdKBByExt) > 0 {
		normalized := make(map[string]SizeThreshold, len(c.SizeThresholdKBByExt))
		for ext, t := range c.SizeThresholdKBByExt {
			normalized[canonicalExt(ext)] = SizeThreshold{
				LowThereHold:   t.Low(),
				UpperThereHold: t.Upper(),
			}
		}
		c.SizeThresholdKBByExt = normalized
	}
}

// canonicalExt lower-cases an extension and guarantees a leading dot.
func canonicalExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

// Validate checks the agent configuration for values a run cannot proceed
// with. Schedule keys are validated here so daemon mode fails at startup
// rather than silently never firing.
func (c *AgentConfig) Validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return fmt.Errorf("server_url must not be empty")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server_url %q is not a valid URL", c.ServerURL)
	}
	if strings.TrimSpace(c.AuthToken) == "" {
		return fmt.Errorf("auth_token must not be empty")
	}
	if len(c.ScanPaths) == 0 {
		return fmt.Errorf("scan_paths must not be empty")
	}
	if c.MaxBatchRecords <= 0 {
		return fmt.Errorf("max_batch_records must be positive, got %d", c.MaxBatchRecords)
	}
	if c.HTTPTimeoutSec <= 0 {
		return fmt.Errorf("http_timeout_sec must be positive, got %d", c.HTTPTimeoutSec)
	}
	if c.ScanRateLimit < 0 {
		return fmt.Errorf("scan_rate_limit must not be negative, got %f", c.ScanRateLimit)
	}
	for key, quota := range c.ScheduleQuotaGB {
		if !ValidScheduleKey(key) {
			return fmt.Errorf("schedule_quota_gb key %q is not a valid schedule key (want e.g. Mon0910)", key)
		}
		if quota < 0 {
			return fmt.Errorf("schedule_quota_gb[%s] must not be negative, got %f", key, quota)
		}
	}
	for ext, t := range c.SizeThresholdKBByExt {
		low, upper := t.Low(), t.Upper()
		if low != nil && *low < 0 {
			return fmt.Errorf("size_threshold_kb_by_ext[%s]: lowtherehold must not be negative", ext)
		}
		if upper != nil && *upper < 0 {
			return fmt.Errorf("size_threshold_kb_by_ext[%s]: uppertherehold must not be negative", ext)
		}
		if low != nil && upper != nil && *low > *upper {
			return fmt.Errorf("size_threshold_kb_by_ext[%s]: lowtherehold %g exceeds uppertherehold %g", ext, *low, *upper)
		}
	}
	return nil
}

// BatchSize returns the effective per-request batch size: configured
// max_batch_records capped at the wire limit.
func (c *AgentConfig) BatchSize() int {
	if c.MaxBatchRecords < WireBatchLimit {
		return c.MaxBatchRecords
	}
	return WireBatchLimit
}

// HTTPTimeout returns the per-attempt network timeout as a duration.
func (c *AgentConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}
