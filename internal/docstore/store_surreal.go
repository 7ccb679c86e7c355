package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"tradegate/pkg/platform/sentinel"
)

const (
	surrealMergeSQL   = "UPSERT $rid MERGE $fields"
	surrealReplaceSQL = "UPSERT $rid CONTENT $fields"
)

// SurrealStore keeps each collection as a schemaless SurrealDB table with the
// document key as the record id.
type SurrealStore struct {
	db *surrealdb.DB
}

func NewSurreal(db *surrealdb.DB) *SurrealStore {
	return &SurrealStore{db: db}
}

// EnsureCollections defines the tables up front; SurrealDB errors when
// querying tables that do not exist.
func (s *SurrealStore) EnsureCollections(ctx context.Context, collections ...string) error {
	for _, c := range collections {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", c)
		if _, err := surrealdb.Query[any](ctx, s.db, sql, nil); err != nil {
			return fmt.Errorf("define table %s: %w", c, err)
		}
	}
	return nil
}

func (s *SurrealStore) Get(ctx context.Context, collection, key string) (Document, error) {
	rec, err := surrealdb.Select[map[string]any](ctx, s.db, surrealmodels.NewRecordID(collection, key))
	if err != nil {
		if isSurrealNotFound(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get document %s/%s: %w: %w", collection, key, sentinel.ErrUnavailable, err)
	}
	if rec == nil || *rec == nil {
		return nil, sentinel.ErrNotFound
	}
	doc := Document(*rec)
	delete(doc, "id")
	return doc, nil
}

func (s *SurrealStore) Set(ctx context.Context, collection, key string, fields Document, opts SetOptions) error {
	sql := surrealReplaceSQL
	if opts.Merge {
		sql = surrealMergeSQL
	}
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID(collection, key),
		"fields": map[string]any(fields),
	}
	if _, err := surrealdb.Query[[]map[string]any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("set document %s/%s: %w: %w", collection, key, sentinel.ErrUnavailable, err)
	}
	return nil
}

func isSurrealNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}
