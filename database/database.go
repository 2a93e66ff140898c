// Package database embeds the SQL migrations applied at startup.
package database

import "embed"

// Migrations holds the goose migration files under "migrations".
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations holding the files.
const MigrationsDir = "migrations"
