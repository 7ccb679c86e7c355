//go:build integration

package docstore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"tradegate/internal/docstore"
	"tradegate/pkg/platform/sentinel"
	"tradegate/pkg/testutil/containers"
)

// contractSuite runs the same behaviour checks against every backend.
type contractSuite struct {
	suite.Suite
	store docstore.Store
	reset func()
}

func (s *contractSuite) SetupTest() {
	if s.reset != nil {
		s.reset()
	}
}

func (s *contractSuite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), "users", "0xmissing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *contractSuite) TestMergePreservesOtherFields() {
	ctx := context.Background()
	s.Require().NoError(s.store.Set(ctx, "users", "0xab", docstore.Document{
		"address": "0xab",
		"email":   "trader@example.com",
	}, docstore.SetOptions{}))
	s.Require().NoError(s.store.Set(ctx, "users", "0xab", docstore.Document{
		"tradingLevel":         "pro",
		"isOnboardingComplete": true,
	}, docstore.SetOptions{Merge: true}))

	doc, err := s.store.Get(ctx, "users", "0xab")
	s.Require().NoError(err)
	s.Equal("0xab", doc["address"])
	s.Equal("trader@example.com", doc["email"])
	s.Equal("pro", doc["tradingLevel"])
	s.Equal(true, doc["isOnboardingComplete"])
}

func (s *contractSuite) TestReplaceDropsOtherFields() {
	ctx := context.Background()
	s.Require().NoError(s.store.Set(ctx, "users", "0xcd", docstore.Document{"address": "0xcd", "email": "x@y.z"}, docstore.SetOptions{}))
	s.Require().NoError(s.store.Set(ctx, "users", "0xcd", docstore.Document{"address": "0xcd"}, docstore.SetOptions{}))

	doc, err := s.store.Get(ctx, "users", "0xcd")
	s.Require().NoError(err)
	s.NotContains(doc, "email")
}

// TestConcurrentMerges verifies a merge is atomic: no concurrent writer's
// field is lost.
func (s *contractSuite) TestConcurrentMerges() {
	ctx := context.Background()
	const writers = 10

	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			field := fmt.Sprintf("f%d", i)
			s.NoError(s.store.Set(ctx, "users", "0xef", docstore.Document{field: true}, docstore.SetOptions{Merge: true}))
		}(i)
	}
	wg.Wait()

	doc, err := s.store.Get(ctx, "users", "0xef")
	s.Require().NoError(err)
	s.Len(doc, writers)
}

func TestRedisDocstore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	suite.Run(t, &contractSuite{
		store: docstore.NewRedis(rc.Client, docstore.WithMergeAttempts(50)),
		reset: func() { _ = rc.FlushAll(context.Background()) },
	})
}

func TestPostgresDocstore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.GetManager().GetPostgres(t)
	if err := docstore.Migrate(pg.DB.DB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	suite.Run(t, &contractSuite{
		store: docstore.NewPostgres(pg.DB),
		reset: func() { _ = pg.TruncateTables(context.Background(), "documents") },
	})
}

func TestSurrealDocstore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	db := containers.GetManager().GetSurreal(t).Connect(t)
	store := docstore.NewSurreal(db)
	if err := store.EnsureCollections(context.Background(), "users"); err != nil {
		t.Fatalf("define tables: %v", err)
	}
	suite.Run(t, &contractSuite{store: store})
}
