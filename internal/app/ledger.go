package app

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"printpos/internal/config"
	"printpos/internal/store"
	"printpos/internal/store/memory"
	"printpos/internal/store/sqlstore"
)

// OpenLedger builds the ledger named by cfg.Driver. The caller owns Close.
func OpenLedger(ctx context.Context, cfg config.Database, logger *slog.Logger) (store.Ledger, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		if cfg.Seed {
			return memory.NewSeeded(), nil
		}
		return memory.New(), nil
	case config.DriverSQLite, config.DriverPostgres:
		ledger, err := sqlstore.Open(ctx, sqlstore.Options{
			Dialect: sqlstore.Dialect(cfg.Driver),
			DSN:     cfg.DSN,
			Migrate: cfg.Migrate,
			Seed:    cfg.Seed,
			Logger:  logger,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "open %s ledger", cfg.Driver)
		}
		return ledger, nil
	default:
		return nil, errors.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
