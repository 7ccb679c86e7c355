//go:build integration

package surreal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tradegate/internal/docstore"
	"tradegate/internal/platform/config"
	"tradegate/pkg/testutil/containers"
)

func TestConnectAndDefineCollections(t *testing.T) {
	sc := containers.GetManager().GetSurreal(t)
	ctx := context.Background()

	db, err := Connect(ctx, config.SurrealConfig{
		URL:       sc.Address,
		Namespace: "tradegate_test",
		Database:  "platform",
		Username:  "root",
		Password:  "root",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(ctx) })

	require.NoError(t, docstore.NewSurreal(db).EnsureCollections(ctx, "users"))
}

func TestConnectRejectsBadCredentials(t *testing.T) {
	sc := containers.GetManager().GetSurreal(t)
	_, err := Connect(context.Background(), config.SurrealConfig{
		URL:       sc.Address,
		Namespace: "tradegate_test",
		Database:  "platform",
		Username:  "root",
		Password:  "wrong",
	})
	require.Error(t, err)
}
