// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package api provides the HTTP surface: the authenticated ingest endpoint,
// forensic query endpoints, the hash history graph, health, metrics, and the
// websocket live feed. Routing uses Chi; responses use the standard
// APIResponse envelope except for /ingest and /healthz, whose bodies are
// part of the agent wire contract.
package api
