package provisiondb

import (
	"context"

	"github.com/uptrace/bun"

	mghelper "github.com/chainsafe/optimal-wallet/pkg/pgutil/migrations"
	"github.com/chainsafe/optimal-wallet/pkg/runstore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if err := mghelper.CreateSchema(ctx, db, &runstore.StepDao{}); err != nil {
			return err
		}
		// a transaction hash belongs to exactly one step
		if err := mghelper.CreateModelUniqueIndexes(ctx, db, &runstore.StepDao{}, "tx_hash"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &runstore.StepDao{}, "status")
	}, func(ctx context.Context, db *bun.DB) error {
		return mghelper.DropTables(ctx, db, &runstore.StepDao{})
	})
}
