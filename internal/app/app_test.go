package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lakehouse/internal/config"
	"lakehouse/internal/ingest"

	_ "lakehouse/internal/storage/sqlite"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Catalog.DSN = "file:" + filepath.Join(dir, "catalog.db")
	cfg.ObjectStore.Root = filepath.Join(dir, "lake")
	cfg.Log.Mode = "development"
	cfg.Ingest.Owner = "ops"
	cfg.Ingest.ParquetCopy = false
	require.NoError(t, cfg.Validate())
	return &cfg
}

// TestOpen_EndToEnd opens a SQLite + filesystem environment and runs one CSV
// through the configured runner.
func TestOpen_EndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env, err := Open(ctx, testConfig(t))
	require.NoError(t, err)
	defer env.Close()

	require.NoError(t, env.Store.Put(ctx, "raw/items.csv", []byte("id,name\n1,a\n2,b\n"), "text/csv", nil))

	runner := env.Runner()
	require.Equal(t, 4, runner.Workers)
	require.Equal(t, "ops", runner.Engine.Owner)
	require.False(t, runner.Engine.ParquetCopy)

	sum, err := runner.RunPrefix(ctx, ingest.RawPrefix)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Counts[ingest.StatusProcessed])

	rec, err := env.Catalog.GetEntry(ctx, env.Store.Container(), "raw/items.csv")
	require.NoError(t, err)
	require.Equal(t, "ops", rec.Owner)
	require.NotNil(t, rec.RowCount)
	require.EqualValues(t, 2, *rec.RowCount)

	_, err = env.Store.Stat(ctx, ingest.ParquetCopyPath("raw/items.csv"))
	require.Error(t, err)

	require.NoError(t, env.Close())
}

// TestOpen_UnknownCatalog ensures an unregistered backend fails at startup.
func TestOpen_UnknownCatalog(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Catalog.Kind = "mssql" // not linked into this test binary
	_, err := Open(context.Background(), cfg)
	require.ErrorContains(t, err, "unsupported catalog kind")
}
