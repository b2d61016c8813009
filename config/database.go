package config

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	charmlog "github.com/charmbracelet/log"
	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig selects and addresses the backing database.
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Name     string
	Username string
	Password string
	SSLMode  string
	Path     string
	DebugSQL bool
}

// DSN returns the connection string for the configured driver. MySQL must be
// 5.7 or newer: the schema uses generated columns and SIGNAL triggers.
func (c DatabaseConfig) DSN() string {
	switch c.Driver {
	case DriverPostgres:
		port := c.Port
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			c.Host, port, c.Username, c.Password, c.Name, c.SSLMode)
	case DriverSQLite:
		return SQLiteDSN(c.Path)
	default:
		port := c.Port
		if port == "" {
			port = "3306"
		}
		// multiStatements lets golang-migrate apply multi-statement files.
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local&multiStatements=true",
			c.Username, c.Password, c.Host, port, c.Name)
	}
}

// SQLiteDSN builds a modernc.org/sqlite DSN. Write transactions start
// immediately so concurrent writers queue on busy_timeout instead of failing
// on lock upgrade.
func SQLiteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(10000)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// sqlDriverName is the database/sql driver registered for each backend.
func (c DatabaseConfig) sqlDriverName() string {
	switch c.Driver {
	case DriverPostgres:
		return "pgx"
	case DriverSQLite:
		return "sqlite"
	default:
		return "mysql"
	}
}

// Dialector returns the gorm dialector for the configured driver.
func (c DatabaseConfig) Dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case DriverMySQL:
		return mysql.Open(c.DSN()), nil
	case DriverPostgres:
		return postgres.Open(c.DSN()), nil
	case DriverSQLite:
		return &gormsqlite.Dialector{DriverName: "sqlite", DSN: c.DSN()}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// OpenDB connects gorm. The returned handle is the only process-wide
// database handle; callers pass it down explicitly.
func OpenDB(cfg *Config, appLogger *charmlog.Logger) (*gorm.DB, error) {
	dialector, err := cfg.Database.Dialector()
	if err != nil {
		return nil, err
	}

	// In production, suppress SQL logs unless explicitly re-enabled via DEBUG_SQL=true.
	logLevel := logger.Info
	if cfg.IsProduction() && !cfg.Database.DebugSQL {
		logLevel = logger.Warn
	}

	gormConfig := &gorm.Config{
		Logger: logger.New(
			appLogger.StandardLog(charmlog.StandardLogOptions{ForceLevel: charmlog.InfoLevel}),
			logger.Config{
				SlowThreshold:             500 * time.Millisecond,
				LogLevel:                  logLevel,
				IgnoreRecordNotFoundError: true,
			},
		),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Database.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access sql pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	appLogger.Info("database connected", "driver", cfg.Database.Driver)
	return db, nil
}

// OpenSQL opens a plain database/sql handle, used by migrations which take
// ownership of the handle and close it.
func OpenSQL(cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.sqlDriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}
