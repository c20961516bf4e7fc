package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-etl/internal/store"
)

// initStore opens the configured destination store.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q (valid: postgres, sqlite)", cfg.Store.Driver)
	}
}
