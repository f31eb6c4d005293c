package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"vfxpublish/internal/repository"
)

// OpenSQLite opens a migrated sqlite database in a temporary directory. It is
// closed when the test ends.
func OpenSQLite(t testing.TB) *repository.DB {
	t.Helper()
	logger := zaptest.NewLogger(t)

	db, err := repository.Open(context.Background(), repository.Options{
		Driver: repository.DriverSQLite,
		DSN:    repository.SQLiteDSN(filepath.Join(t.TempDir(), "publish.db")),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(logger))
	return db
}
