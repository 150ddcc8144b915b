// Package migrations holds bun migration helpers shared by the migration groups
package migrations

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

const usageText = `Usage:
  go run cmd/provisioner/migrate/main.go [flags] <command>

This program runs command on the provisioning database. Supported commands are:
  - init - creates migration info table in the database
  - up - runs all available migrations.
  - down - reverts last migration group.
  - status - prints migration status.

Examples:
  go run cmd/provisioner/migrate/main.go -config config.yaml init
  go run cmd/provisioner/migrate/main.go -config config.yaml up
  go run cmd/provisioner/migrate/main.go -config config.yaml status
`

// Usage prints command usage
func Usage() {
	fmt.Print(usageText)
	flag.PrintDefaults()
	os.Exit(2)
}

// Exitf prints the message and usage and exits
func Exitf(s string, args ...any) {
	fmt.Fprintf(os.Stderr, s+"\n", args...)
	Usage()
}

// CreateSchema creates tables for models unless they exist
func CreateSchema(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %s: %w", reflect.TypeOf(model), err)
		}
	}
	return nil
}

// DropTables drops the tables of models in the given order
func DropTables(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		if _, err := db.NewDropTable().
			Model(model).
			IfExists().
			Cascade().
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table for %s: %w", reflect.TypeOf(model), err)
		}
	}
	return nil
}

// CreateModelIndexes creates one idx_<table>_<column> index per column
func CreateModelIndexes(ctx context.Context, db bun.IDB, model any, columns ...string) error {
	return createModelIndexes(ctx, db, model, false, columns)
}

// CreateModelUniqueIndexes is CreateModelIndexes with unique indexes
func CreateModelUniqueIndexes(ctx context.Context, db bun.IDB, model any, columns ...string) error {
	return createModelIndexes(ctx, db, model, true, columns)
}

func createModelIndexes(ctx context.Context, db bun.IDB, model any, unique bool, columns []string) error {
	for _, column := range columns {
		indexName, err := modelIndexName(db, model, column)
		if err != nil {
			return err
		}
		q := db.NewCreateIndex().
			Model(model).
			Index(indexName).
			Column(column).
			IfNotExists()
		if unique {
			q = q.Unique()
		}
		if _, err = q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create index %s: %w", indexName, err)
		}
	}
	return nil
}

// DropModelIndexes drops indexes created by CreateModelIndexes
func DropModelIndexes(ctx context.Context, db bun.IDB, model any, columns ...string) error {
	for _, column := range columns {
		indexName, err := modelIndexName(db, model, column)
		if err != nil {
			return err
		}
		if _, err = db.NewDropIndex().
			Model(model).
			Index(indexName).
			IfExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop index %s: %w", indexName, err)
		}
	}
	return nil
}

func modelIndexName(db bun.IDB, model any, column string) (string, error) {
	if model == nil {
		return "", errors.New("model cannot be nil")
	}
	tableName := db.NewCreateIndex().Model(model).GetTableName()
	if tableName == "" {
		return "", fmt.Errorf("failed to resolve table name for model %T", model)
	}

	indexTableName := strings.NewReplacer(`"`, "", ".", "_").Replace(tableName)
	return fmt.Sprintf("idx_%s_%s", indexTableName, column), nil
}

// RunMigrations executes the migrator command named by args[0]
func RunMigrations(ctx context.Context, migrator *migrate.Migrator, logger *zap.Logger, args ...string) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(args) == 0 {
		return errors.New("no command provided")
	}

	locked := func(fn func() error) error {
		if err := migrator.Lock(ctx); err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		defer func() {
			if err := migrator.Unlock(ctx); err != nil {
				logger.Warn("Failed to release migration lock", zap.Error(err))
			}
		}()
		return fn()
	}

	switch args[0] {
	case "init":
		if err := migrator.Init(ctx); err != nil {
			return err
		}
		logger.Info("Migration table created")
		return nil

	case "up":
		return locked(func() error {
			group, err := migrator.Migrate(ctx)
			if err != nil {
				return err
			}
			if group.IsZero() {
				logger.Info("No new migrations to run, database is up to date")
				return nil
			}
			logger.Info("Migrated", zap.Stringer("group", group))
			return nil
		})

	case "down":
		return locked(func() error {
			group, err := migrator.Rollback(ctx)
			if err != nil {
				return err
			}
			if group.IsZero() {
				logger.Info("No migrations to roll back")
				return nil
			}
			logger.Info("Rolled back", zap.Stringer("group", group))
			return nil
		})

	case "status":
		ms, err := migrator.MigrationsWithStatus(ctx)
		if err != nil {
			return err
		}
		logger.Info("Migration status",
			zap.Stringer("migrations", ms),
			zap.Stringer("unapplied", ms.Unapplied()),
			zap.Stringer("last_group", ms.LastGroup()))
		return nil

	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}
