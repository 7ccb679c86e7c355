package docstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("missing document returns ErrNotFound", func(t *testing.T) {
		s := NewInMemory()
		_, err := s.Get(ctx, "users", "0xab")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("merge preserves fields it does not name", func(t *testing.T) {
		s := NewInMemory()
		require.NoError(t, s.Set(ctx, "users", "0xab", Document{"address": "0xab", "email": "a@b.c"}, SetOptions{}))
		require.NoError(t, s.Set(ctx, "users", "0xab", Document{"lastSeen": int64(42)}, SetOptions{Merge: true}))

		doc, err := s.Get(ctx, "users", "0xab")
		require.NoError(t, err)
		assert.Equal(t, Document{"address": "0xab", "email": "a@b.c", "lastSeen": int64(42)}, doc)
	})

	t.Run("replace drops fields it does not name", func(t *testing.T) {
		s := NewInMemory()
		require.NoError(t, s.Set(ctx, "users", "0xab", Document{"address": "0xab", "email": "a@b.c"}, SetOptions{}))
		require.NoError(t, s.Set(ctx, "users", "0xab", Document{"address": "0xab"}, SetOptions{}))

		doc, err := s.Get(ctx, "users", "0xab")
		require.NoError(t, err)
		assert.Equal(t, Document{"address": "0xab"}, doc)
	})

	t.Run("merge on a missing document creates it", func(t *testing.T) {
		s := NewInMemory()
		require.NoError(t, s.Set(ctx, "users", "0xcd", Document{"lastSeen": int64(1)}, SetOptions{Merge: true}))
		assert.Equal(t, 1, s.Len("users"))
	})

	t.Run("returned documents do not alias stored ones", func(t *testing.T) {
		s := NewInMemory()
		require.NoError(t, s.Set(ctx, "users", "0xab", Document{"email": "a@b.c"}, SetOptions{}))
		doc, err := s.Get(ctx, "users", "0xab")
		require.NoError(t, err)
		doc["email"] = "mutated"

		again, err := s.Get(ctx, "users", "0xab")
		require.NoError(t, err)
		assert.Equal(t, "a@b.c", again["email"])
	})

	t.Run("concurrent merges on distinct fields all land", func(t *testing.T) {
		s := NewInMemory()
		var wg sync.WaitGroup
		for _, field := range []string{"a", "b", "c", "d", "e", "f"} {
			wg.Add(1)
			go func(field string) {
				defer wg.Done()
				assert.NoError(t, s.Set(ctx, "users", "0xab", Document{field: true}, SetOptions{Merge: true}))
			}(field)
		}
		wg.Wait()

		doc, err := s.Get(ctx, "users", "0xab")
		require.NoError(t, err)
		assert.Len(t, doc, 6)
	})
}
