package provisiondb

import (
	"context"

	"github.com/uptrace/bun"

	mghelper "github.com/chainsafe/optimal-wallet/pkg/pgutil/migrations"
	"github.com/chainsafe/optimal-wallet/pkg/runstore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if err := mghelper.CreateSchema(ctx, db, &runstore.RunDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &runstore.RunDao{}, "status", "created_at")
	}, func(ctx context.Context, db *bun.DB) error {
		return mghelper.DropTables(ctx, db, &runstore.RunDao{})
	})
}
