// Package migrations embeds the schema for every supported database driver
// and applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql mysql/*.sql sqlite/*.sql
var files embed.FS

// Run builds a migrator for driver over db, hands it to fn and closes it.
// The migrator owns db: it is closed when Run returns.
func Run(db *sql.DB, driver string, fn func(m *migrate.Migrate) error) error {
	if db == nil {
		return errors.New("migrations: db is nil")
	}

	dbDriver, err := databaseDriver(db, driver)
	if err != nil {
		_ = db.Close()
		return err
	}

	src, err := iofs.New(files, driver)
	if err != nil {
		_ = dbDriver.Close()
		return fmt.Errorf("migrations: open %s source: %w", driver, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, dbDriver)
	if err != nil {
		_ = src.Close()
		_ = dbDriver.Close()
		return fmt.Errorf("migrations: init migrator: %w", err)
	}
	defer func() {
		_, _ = m.Close()
		_ = db.Close()
	}()

	return fn(m)
}

// Up applies every pending migration.
func Up(db *sql.DB, driver string) error {
	return Run(db, driver, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrations: up: %w", err)
		}
		return nil
	})
}

// Down rolls back steps migrations, or all of them when steps <= 0.
func Down(db *sql.DB, driver string, steps int) error {
	return Run(db, driver, func(m *migrate.Migrate) error {
		var err error
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrations: down: %w", err)
		}
		return nil
	})
}

// Version reports the applied schema version.
func Version(db *sql.DB, driver string) (version uint, dirty bool, err error) {
	err = Run(db, driver, func(m *migrate.Migrate) error {
		var verr error
		version, dirty, verr = m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			return nil
		}
		return verr
	})
	return version, dirty, err
}

func databaseDriver(db *sql.DB, driver string) (database.Driver, error) {
	switch driver {
	case "postgres":
		d, err := migratepgx.WithInstance(db, &migratepgx.Config{})
		if err != nil {
			return nil, fmt.Errorf("migrations: postgres driver: %w", err)
		}
		return d, nil
	case "mysql":
		d, err := migratemysql.WithInstance(db, &migratemysql.Config{})
		if err != nil {
			return nil, fmt.Errorf("migrations: mysql driver: %w", err)
		}
		return d, nil
	case "sqlite":
		d, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
		if err != nil {
			return nil, fmt.Errorf("migrations: sqlite driver: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("migrations: unsupported driver %q", driver)
	}
}
