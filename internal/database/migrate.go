package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"yurica-pos/internal/models"
)

var tables = []interface{}{
	(*models.Event)(nil),
	(*models.MenuItem)(nil),
}

// Migrate creates the tables and indexes the service needs. It is safe to run
// on every start.
func Migrate(ctx context.Context, db *bun.DB) error {
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}

	// Every sales query filters on type and a ts range.
	_, err := db.NewCreateIndex().
		Model((*models.Event)(nil)).
		Index("idx_events_type_ts").
		Column("type", "ts").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create idx_events_type_ts: %w", err)
	}

	_, err = db.NewCreateIndex().
		Model((*models.MenuItem)(nil)).
		Index("idx_menu_items_name").
		Column("name").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create idx_menu_items_name: %w", err)
	}

	return nil
}

// Reset drops and recreates every table. Only the migrate command calls it.
func Reset(ctx context.Context, db *bun.DB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(tables[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", tables[i], err)
		}
	}
	return Migrate(ctx, db)
}
