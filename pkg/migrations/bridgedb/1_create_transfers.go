package bridgedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	mghelper "github.com/chainflux/tokenbridge/pkg/pgutil/migrations"
	"github.com/chainflux/tokenbridge/pkg/transferstore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating transfers table...")
		if err := mghelper.CreateSchema(ctx, db, &transferstore.TransferDao{}); err != nil {
			return err
		}
		// The relayer sweep filters on (from_chain, status); lookups come by id.
		return mghelper.CreateModelIndexes(ctx, db, &transferstore.TransferDao{},
			"status", "from_chain", "src_tx_hash")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping transfers table...")
		return mghelper.DropTables(ctx, db, &transferstore.TransferDao{})
	})
}
