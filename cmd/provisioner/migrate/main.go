package main

import (
	"context"
	"flag"
	"log"

	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"github.com/chainsafe/optimal-wallet/pkg/config"
	"github.com/chainsafe/optimal-wallet/pkg/migrations/provisiondb"
	"github.com/chainsafe/optimal-wallet/pkg/pgutil"
	mghelper "github.com/chainsafe/optimal-wallet/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "config.example.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("error creating logger: %s", err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	db, err := pgutil.ConnectDB(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal("Error connecting to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Running provisioning database migrations", zap.String("database", cfg.Database.Database))

	migrator := migrate.NewMigrator(db, provisiondb.Migrations)
	if err := mghelper.RunMigrations(ctx, migrator, logger, flag.Args()...); err != nil {
		mghelper.Exitf("%s", err.Error())
	}
}
