package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printpos/internal/config"
)

func TestOpenLedgerDrivers(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	seeded, err := OpenLedger(ctx, config.Database{Driver: config.DriverMemory, Seed: true}, logger)
	require.NoError(t, err)
	products, err := seeded.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 6)

	empty, err := OpenLedger(ctx, config.Database{Driver: config.DriverMemory}, logger)
	require.NoError(t, err)
	products, err = empty.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)

	sqlite, err := OpenLedger(ctx, config.Database{
		Driver:  config.DriverSQLite,
		DSN:     filepath.Join(t.TempDir(), "printpos.db"),
		Migrate: true,
		Seed:    true,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	products, err = sqlite.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 6)

	_, err = OpenLedger(ctx, config.Database{Driver: "mysql"}, logger)
	assert.Error(t, err)
}
