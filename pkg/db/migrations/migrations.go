package migrations

import "github.com/uptrace/bun/migrate"

// Migrations collects every migration registered by init functions in this package.
var Migrations = migrate.NewMigrations()
