//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tradegate/internal/docstore"
	"tradegate/internal/platform/config"
	"tradegate/pkg/testutil/containers"
)

func TestOpenAndMigrate(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	cfg := config.Default().Postgres
	cfg.DSN = pg.DSN

	db, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, docstore.Migrate(db.DB))
	require.NoError(t, docstore.Migrate(db.DB), "migrations are idempotent")

	var n int
	require.NoError(t, db.Get(&n, "SELECT count(*) FROM documents"))
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), config.PostgresConfig{})
	require.Error(t, err)
}
