package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/techwithparamesh/applyn-sub004/pkg/core"
)

// openTestDB opens a database for tests.
// When TEST_DATABASE_URL is set it connects to PostgreSQL; otherwise it
// opens a fresh in-memory SQLite instance.
// PostgreSQL connections are pool-limited and closed on test cleanup to
// avoid exceeding max_connections.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		require.NoError(t, err, "open postgres test db")

		require.NoError(t, ConfigurePool(db, MaxOpenConns(4), MaxIdleConns(1)))

		// Clean before AND after to ensure test isolation.
		cleanupPostgresDB(t, db)
		t.Cleanup(func() {
			cleanupPostgresDB(t, db)
			sqlDB, err := db.DB()
			if err == nil {
				_ = sqlDB.Close()
			}
		})
		return db
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "open in-memory sqlite")

	// Each pooled connection to :memory: would get its own database, so the
	// SQLite test pool is pinned to a single connection.
	require.NoError(t, ConfigurePool(db, MaxOpenConns(1), MaxIdleConns(1)))
	return db
}

// cleanupPostgresDB deletes all rows from tables after each test
// so tests are isolated without requiring a fresh database per test.
func cleanupPostgresDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	tables := []string{"build_jobs", "payments", "apps"}
	for _, tbl := range tables {
		db.Exec("DELETE FROM " + tbl)
	}
}

// newTestStorage creates a fresh migrated storage instance for each test.
func newTestStorage(t *testing.T) *GormStorage {
	t.Helper()
	s := NewGormStorage(openTestDB(t))
	require.NoError(t, s.Migrate(context.Background()), "migrate schema")
	return s
}

// newTestJob builds a minimal valid BuildJob for insertion in tests.
func newTestJob(appID string) *core.BuildJob {
	return &core.BuildJob{
		AppID:   appID,
		OwnerID: "owner-1",
	}
}

// newTestApp builds a minimal App owned by owner-1.
func newTestApp(name string) *core.App {
	return &core.App{
		OwnerID:     "owner-1",
		Name:        name,
		PackageName: "com.applyn." + name,
	}
}
