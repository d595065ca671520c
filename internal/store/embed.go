package store

import "embed"

// MigrationFS holds the schema migrations applied by Migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
