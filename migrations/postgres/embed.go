// Package migrations embeds SQL migration files.
package migrations

import "embed"

// StateFS contains the schema of the authorization request state table.
//
//go:embed state/*.sql
var StateFS embed.FS

// StateDir is the directory within StateFS where migrations live.
const StateDir = "state"
