package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Migrate brings the schema for dialect up to the latest embedded version.
//
// SQLite migrations run on db itself so that single-connection and in-memory
// databases see the schema. PostgreSQL migrations run on a dedicated pool
// because the driver pins a connection for its advisory lock and releases it
// only when the migrator is closed.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect, dsn string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	src, err := iofs.New(migrationsFS, "migrations/"+string(dialect))
	if err != nil {
		return errors.Wrapf(err, "open %s migrations", dialect)
	}

	var (
		driver database.Driver
		owned  *sql.DB
	)
	switch dialect {
	case SQLite:
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	case Postgres:
		owned, err = sql.Open(driverName(dialect), dsn)
		if err != nil {
			return errors.Wrap(err, "open migration pool")
		}
		if err = owned.PingContext(ctx); err != nil {
			_ = owned.Close()
			return errors.Wrap(err, "ping migration pool")
		}
		driver, err = migratepgx.WithInstance(owned, &migratepgx.Config{})
	default:
		return errors.Errorf("unsupported dialect %q", dialect)
	}
	if err != nil {
		if owned != nil {
			_ = owned.Close()
		}
		return errors.Wrapf(err, "init %s migration driver", dialect)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(dialect), driver)
	if err != nil {
		return errors.Wrap(err, "init migrator")
	}
	if owned != nil {
		defer func() {
			_, _ = m.Close()
			_ = owned.Close()
		}()
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("schema up to date", "dialect", dialect)
			return nil
		}
		return errors.Wrap(err, "apply migrations")
	}

	version, dirty, err := m.Version()
	if err != nil {
		return errors.Wrap(err, "read schema version")
	}
	logger.Info("schema migrated", "dialect", dialect, "version", version, "dirty", dirty)
	return nil
}
