// Package provisiondb registers the migrations of the provisioning run store
package provisiondb

import "github.com/uptrace/bun/migrate"

// Migrations is the provisioning database migration group
var Migrations = migrate.NewMigrations()
