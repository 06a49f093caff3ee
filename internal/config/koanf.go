// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where the server config file is
// searched in order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/custodia/config.yaml",
	"/etc/custodia/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load loads the server configuration with layered sources:
//
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: CUSTODIA_* overrides
//
// Precedence: ENV > file > defaults.
func Load() (*Config, error) {
	return LoadWithPath(findConfigFile(DefaultConfigPaths))
}

// LoadWithPath loads the server configuration from an explicit file path.
// An empty path skips the file layer.
func LoadWithPath(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// CUSTODIA_SERVER_PORT -> server.port, CUSTODIA_BUFFER_CAPACITY ->
	// buffer.capacity. Variables outside the map are ignored.
	if err := k.Load(env.Provider("CUSTODIA_", ".", serverEnvTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	if err := processSliceFields(k, serverSlicePaths); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing path from the candidates, after
// consulting the CONFIG_PATH env var. Empty string means no file layer.
func findConfigFile(candidates []string) string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// serverEnvMappings maps CUSTODIA_* environment variables to config paths.
// An explicit map keeps unknown variables from silently creating keys.
var serverEnvMappings = map[string]string{
	"custodia_server_host":              "server.host",
	"custodia_server_port":              "server.port",
	"custodia_server_read_timeout":      "server.read_timeout",
	"custodia_server_write_timeout":     "server.write_timeout",
	"custodia_server_shutdown_timeout":  "server.shutdown_timeout",
	"custodia_server_cors_origins":      "server.cors_origins",
	"custodia_server_ingest_rate_limit": "server.ingest_rate_limit",

	"custodia_database_path":       "database.path",
	"custodia_database_max_memory": "database.max_memory",
	"custodia_database_threads":    "database.threads",

	"custodia_buffer_capacity":       "buffer.capacity",
	"custodia_buffer_flush_interval": "buffer.flush_interval",
	"custodia_buffer_flush_max_rows": "buffer.flush_max_rows",

	"custodia_tracker_path": "tracker.path",

	"custodia_live_feed_enabled": "live_feed.enabled",

	"custodia_log_level":  "logging.level",
	"custodia_log_format": "logging.format",
	"custodia_log_caller": "logging.caller",
}

// serverEnvTransform maps an environment variable name to its koanf path.
// Unmapped variables return "" and are dropped.
func serverEnvTransform(key string) string {
	if path, ok := serverEnvMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}

// serverSlicePaths lists config paths that accept comma-separated strings
// from the environment in place of YAML lists.
var serverSlicePaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values into slices for
// the given paths. Values already provided as lists by the YAML layer are
// left alone.
func processSliceFields(k *koanf.Koanf, paths []string) error {
	for _, path := range paths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}
