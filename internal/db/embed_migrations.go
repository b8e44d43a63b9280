package db

import "embed"

// MigrationFS embeds the account schema migrations (the users table and its
// unique indexes) so cmd/migrate ships as a single binary with no SQL files
// on disk.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
