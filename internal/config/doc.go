// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

/*
Package config provides layered configuration loading for the Custodia
server and agent using Koanf v2.

Configuration is resolved in three layers, later layers overriding earlier
ones:

 1. Struct defaults
 2. Optional YAML config file (CONFIG_PATH env var or default paths)
 3. CUSTODIA_* environment variables

The agent side additionally supports multi-config deployments: several
config files side by side, each with its own schedule windows and quotas,
verified for same-day window collisions by VerifySchedules.
*/
package config
