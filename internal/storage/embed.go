// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package storage owns the control plane's single SQLite database: schema
// migrations and connection setup shared by the token and music-session
// stores.
package storage

import "embed"

//go:embed migrations/*.sql
var migrationFS embed.FS
