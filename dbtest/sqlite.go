// Package dbtest opens migrated, file-backed SQLite databases for tests.
package dbtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"loan-origination-api/config"
	"loan-origination-api/migrations"
)

// Open returns a gorm handle on a fresh database in t.TempDir() with every
// migration applied. The handle is closed when the test ends.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := config.SQLiteDSN(filepath.Join(t.TempDir(), "loan.db"))

	migrationDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite for migrations: %v", err)
	}
	if err := migrations.Up(migrationDB, config.DriverSQLite); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	db, err := gorm.Open(&gormsqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open gorm sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql pool: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}
