// Package pgutil connects to PostgreSQL through bun and provides testcontainer helpers
package pgutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"github.com/chainsafe/optimal-wallet/pkg/config"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultMaxOpenConn = 10
)

// ConnectDB opens a bun connection pool to the configured database and pings it
func ConnectDB(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*bun.DB, error) {
	if cfg == nil || !cfg.Enabled() {
		return nil, errors.New("database is not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	// Functional options keep special characters in credentials unescaped
	connector := pgdriver.NewConnector(
		pgdriver.WithNetwork("tcp"),
		pgdriver.WithAddr(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		pgdriver.WithUser(cfg.User),
		pgdriver.WithPassword(cfg.Password),
		pgdriver.WithDatabase(cfg.Database),
		pgdriver.WithInsecure(sslMode == "disable"),
		pgdriver.WithDialTimeout(defaultDialTimeout),
		pgdriver.WithApplicationName("optimal-wallet"),
	)

	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(defaultMaxOpenConn)

	db := bun.NewDB(sqldb, pgdialect.New())

	pingCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", cfg.Database, err)
	}

	logger.Info("Connected to database",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database))
	return db, nil
}
