//go:build integration

package containers

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SurrealContainer wraps a generic SurrealDB container; there is no
// testcontainers module for it.
type SurrealContainer struct {
	Container testcontainers.Container
	Address   string
}

// NewSurrealContainer starts SurrealDB with root/root credentials.
func NewSurrealContainer(t *testing.T) *SurrealContainer {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--user", "root", "--pass", "root"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("8000/tcp"),
				wait.ForLog("Started web server"),
			).WithDeadline(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start surrealdb container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get surrealdb host: %v", err)
	}
	port, err := container.MappedPort(ctx, "8000/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get surrealdb port: %v", err)
	}

	return &SurrealContainer{
		Container: container,
		Address:   fmt.Sprintf("ws://%s:%s/rpc", host, port.Port()),
	}
}

// Connect opens a signed-in connection using a database unique to t.
func (c *SurrealContainer) Connect(t *testing.T) *surrealdb.DB {
	t.Helper()

	ctx := context.Background()
	db, err := surrealdb.New(c.Address)
	if err != nil {
		t.Fatalf("connect to surrealdb: %v", err)
	}
	if _, err := db.SignIn(ctx, map[string]any{"user": "root", "pass": "root"}); err != nil {
		t.Fatalf("sign in to surrealdb: %v", err)
	}

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	if err := db.Use(ctx, "tradegate_test", fmt.Sprintf("t_%s_%d", name, time.Now().UnixNano()%100000)); err != nil {
		t.Fatalf("select surrealdb namespace: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close(context.Background())
	})
	return db
}
