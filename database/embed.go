// Package database's embedded migrations — SQL files baked into the binary
// at compile time via go:embed, so a deployed binary never needs migration
// files shipped alongside it.
package database

import "embed"

// EmbeddedMigrations holds every SQL file under migrations/. Use
// fs.Sub(EmbeddedMigrations, "migrations") to reach the subdirectory as a
// plain fs.FS.
//
//go:embed migrations/*.sql
var EmbeddedMigrations embed.FS
