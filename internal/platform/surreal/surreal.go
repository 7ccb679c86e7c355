// Package surreal opens a signed-in SurrealDB connection.
package surreal

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"tradegate/internal/platform/config"
)

// Connect dials SurrealDB, signs in and selects the configured namespace and
// database.
func Connect(ctx context.Context, cfg config.SurrealConfig) (*surrealdb.DB, error) {
	db, err := surrealdb.New(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]any{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}
	return db, nil
}
