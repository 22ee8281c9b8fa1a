package store

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresCatalog_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()
	pg, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("catalog"),
		postgres.WithUsername("launchr"),
		postgres.WithPassword("launchr"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer func() { _ = pg.Terminate(ctx) }()

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	c, err := Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Upsert(ctx, VersionRecord{ID: "1.20.4", Kind: KindRelease, ReleaseTime: time.Now().UTC(), JavaMajor: 17}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := c.MarkInstalled(ctx, "1.20.4", true, 25); err != nil {
		t.Fatalf("mark installed: %v", err)
	}
	v, err := c.Get(ctx, "1.20.4")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !v.Installed || v.JavaMajor != 17 {
		t.Fatalf("unexpected record: %+v", v)
	}
}
