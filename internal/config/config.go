// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the server-side configuration tree.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Buffer   BufferConfig   `koanf:"buffer"`
	Tracker  TrackerConfig  `koanf:"tracker"`
	LiveFeed LiveFeedConfig `koanf:"live_feed"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the listen address. Default: 0.0.0.0
	Host string `koanf:"host"`

	// Port is the listen port. Default: 8571
	Port int `koanf:"port"`

	// ReadTimeout bounds request reads. Default: 30s
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// WriteTimeout bounds response writes. Default: 30s
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed CORS origins for the dashboard.
	// Default: ["*"]
	CORSOrigins []string `koanf:"cors_origins"`

	// IngestRateLimit is the per-IP request ceiling on /ingest,
	// requests per minute. 0 disables rate limiting. Default: 600
	IngestRateLimit int `koanf:"ingest_rate_limit"`
}

// DatabaseConfig holds DuckDB settings for the durable store.
type DatabaseConfig struct {
	// Path is the DuckDB database file. Default: /data/custodia.duckdb
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB memory usage. Default: 1GB
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// BufferConfig holds ingest buffer and flush worker settings.
type BufferConfig struct {
	// Capacity is the maximum number of queued records. A batch whose
	// admission would exceed capacity is rejected whole. Default: 50000
	Capacity int `koanf:"capacity"`

	// FlushInterval is how often the flush worker wakes without an
	// occupancy signal. Default: 500ms
	FlushInterval time.Duration `koanf:"flush_interval"`

	// FlushMaxRows caps the rows written in one durable transaction.
	// Default: 1000
	FlushMaxRows int `koanf:"flush_max_rows"`
}

// TrackerConfig holds change tracker settings.
type TrackerConfig struct {
	// Path is the badger directory for the per-path hash tracker.
	// Default: /data/tracker
	Path string `koanf:"path"`
}

// LiveFeedConfig holds websocket live feed settings.
type LiveFeedConfig struct {
	// Enabled turns the /ws/feed endpoint and the admission event relay
	// on. Default: true
	Enabled bool `koanf:"enabled"`
}

// LoggingConfig holds logging settings shared by server and agent.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the server defaults applied before file and env
// layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8571,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			IngestRateLimit: 600,
		},
		Database: DatabaseConfig{
			Path:      "/data/custodia.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Buffer: BufferConfig{
			Capacity:      50000,
			FlushInterval: 500 * time.Millisecond,
			FlushMaxRows:  1000,
		},
		Tracker: TrackerConfig{
			Path: "/data/tracker",
		},
		LiveFeed: LiveFeedConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Buffer.Capacity <= 0 {
		return fmt.Errorf("buffer.capacity must be positive, got %d", c.Buffer.Capacity)
	}
	if c.Buffer.FlushInterval <= 0 {
		return fmt.Errorf("buffer.flush_interval must be positive, got %s", c.Buffer.FlushInterval)
	}
	if c.Buffer.FlushMaxRows <= 0 {
		return fmt.Errorf("buffer.flush_max_rows must be positive, got %d", c.Buffer.FlushMaxRows)
	}
	if strings.TrimSpace(c.Tracker.Path) == "" {
		return fmt.Errorf("tracker.path must not be empty")
	}
	return nil
}
