package docstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"tradegate/pkg/platform/sentinel"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	selectDocumentSQL = `SELECT data FROM documents WHERE collection = $1 AND key = $2`

	mergeDocumentSQL = `
		INSERT INTO documents (collection, key, data, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (collection, key) DO UPDATE SET
			data = documents.data || EXCLUDED.data,
			updated_at = now()`

	replaceDocumentSQL = `
		INSERT INTO documents (collection, key, data, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (collection, key) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = now()`
)

// PostgresStore keeps documents as JSONB rows. A merge is a single upsert
// using the jsonb concatenation operator, so it is atomic per row.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, key string) (Document, error) {
	var raw []byte
	err := s.db.GetContext(ctx, &raw, selectDocumentSQL, collection, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s/%s: %w: %w", collection, key, sentinel.ErrUnavailable, err)
	}
	return decodeDocument(raw)
}

func (s *PostgresStore) Set(ctx context.Context, collection, key string, fields Document, opts SetOptions) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	query := replaceDocumentSQL
	if opts.Merge {
		query = mergeDocumentSQL
	}
	if _, err := s.db.ExecContext(ctx, query, collection, key, string(payload)); err != nil {
		return fmt.Errorf("set document %s/%s: %w: %w", collection, key, sentinel.ErrUnavailable, err)
	}
	return nil
}
