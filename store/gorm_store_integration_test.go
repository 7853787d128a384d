//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Run with: go test -tags integration ./store/...
func TestGormStoreContract(t *testing.T) {
	ctx := context.Background()

	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("survivor_test"),
		postgres.WithUsername("survivor"),
		postgres.WithPassword("survivor"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if pg != nil {
		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(pg); err != nil {
				t.Logf("terminate postgres: %v", err)
			}
		})
	}
	require.NoError(t, err)

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable", "TimeZone=UTC")
	require.NoError(t, err)

	db, err := OpenPostgres(dsn, false)
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	// Fixtures use fresh ids, so every subtest can share one database.
	runStoreContract(t, func(*testing.T) Store { return NewGormStore(db) })
}
