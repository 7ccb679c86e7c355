package docstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/pkg/platform/sentinel"
)

func newMockPostgres(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresStoreGet(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes the stored document", func(t *testing.T) {
		store, mock := newMockPostgres(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectDocumentSQL)).
			WithArgs("users", "0xab").
			WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"address":"0xab","isOnboardingComplete":false}`)))

		doc, err := store.Get(ctx, "users", "0xab")
		require.NoError(t, err)
		assert.Equal(t, "0xab", doc["address"])
		assert.Equal(t, false, doc["isOnboardingComplete"])
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows maps to ErrNotFound", func(t *testing.T) {
		store, mock := newMockPostgres(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectDocumentSQL)).
			WithArgs("users", "0xab").
			WillReturnRows(sqlmock.NewRows([]string{"data"}))

		_, err := store.Get(ctx, "users", "0xab")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("driver failure maps to ErrUnavailable", func(t *testing.T) {
		store, mock := newMockPostgres(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectDocumentSQL)).
			WillReturnError(errors.New("connection reset"))

		_, err := store.Get(ctx, "users", "0xab")
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("undecodable row maps to ErrInvalidState", func(t *testing.T) {
		store, mock := newMockPostgres(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectDocumentSQL)).
			WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`[1,2]`)))

		_, err := store.Get(ctx, "users", "0xab")
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})
}

func TestPostgresStoreSet(t *testing.T) {
	ctx := context.Background()

	t.Run("merge uses jsonb concatenation upsert", func(t *testing.T) {
		store, mock := newMockPostgres(t)
		mock.ExpectExec(regexp.QuoteMeta(mergeDocumentSQL)).
			WithArgs("users", "0xab", `{"lastSeen":42}`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.Set(ctx, "users", "0xab", Document{"lastSeen": 42}, SetOptions{Merge: true})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("replace overwrites the row", func(t *testing.T) {
		store, mock := newMockPostgres(t)
		mock.ExpectExec(regexp.QuoteMeta(replaceDocumentSQL)).
			WithArgs("users", "0xab", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.Set(ctx, "users", "0xab", Document{"address": "0xab"}, SetOptions{})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver failure maps to ErrUnavailable", func(t *testing.T) {
		store, mock := newMockPostgres(t)
		mock.ExpectExec(regexp.QuoteMeta(mergeDocumentSQL)).
			WillReturnError(errors.New("connection reset"))

		err := store.Set(ctx, "users", "0xab", Document{"lastSeen": 1}, SetOptions{Merge: true})
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})
}
