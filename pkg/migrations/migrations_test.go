package migrations

import (
	"context"
	"testing"

	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/optimal-wallet/pkg/migrations/provisiondb"
	"github.com/chainsafe/optimal-wallet/pkg/pgutil"
)

func TestProvisionDBMigrations_Apply(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, provisiondb.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if group.IsZero() {
		t.Fatal("expected migrations to run, but none were applied")
	}

	for _, table := range []string{"provisioning_runs", "provisioning_steps", "bun_migrations"} {
		pgutil.AssertTableExists(t, db, table)
	}
	pgutil.AssertIndexExists(t, db, "idx_provisioning_runs_status")
	pgutil.AssertIndexExists(t, db, "idx_provisioning_runs_created_at")
	pgutil.AssertIndexExists(t, db, "idx_provisioning_steps_tx_hash")
	pgutil.AssertIndexExists(t, db, "idx_provisioning_steps_status")

	// second run is a no-op
	group, err = migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("second Migrate() failed: %v", err)
	}
	if !group.IsZero() {
		t.Errorf("expected no migrations on second run, got %s", group)
	}
}

func TestProvisionDBMigrations_Rollback(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, provisiondb.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	group, err := migrator.Rollback(ctx)
	if err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}
	if group.IsZero() {
		t.Fatal("expected a migration group to be rolled back")
	}

	pgutil.AssertTableNotExists(t, db, "provisioning_runs")
	pgutil.AssertTableNotExists(t, db, "provisioning_steps")
	pgutil.AssertTableExists(t, db, "bun_migrations")
}
