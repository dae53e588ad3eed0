package persistence

import (
	"context"
	"testing"

	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/internal/database"
	"github.com/stretchr/testify/require"
)

// newTestDB creates an in-memory SQLite database with migrations applied.
// Cannot use the testdb package here due to import cycle (testdb imports
// persistence).
func newTestDB(t *testing.T) database.Database {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewDatabase(ctx, "sqlite:///:memory:")
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testRemote(t *testing.T, raw string) repository.Remote {
	t.Helper()
	remote, err := repository.ParseRemote(raw)
	require.NoError(t, err)
	return remote
}
