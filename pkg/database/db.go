// Package database opens the relational store shared by the catalog, review,
// audit and cleanup tables. PostgreSQL is the production dialect; MySQL and
// SQLite are supported for smaller deployments and tests.
package database

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported database types.
const (
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
	TypeSQLite   = "sqlite"
)

// Config holds connection settings.
type Config struct {
	Type            string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// LogSQL enables GORM statement logging at Info level.
	LogSQL bool
}

// DefaultConfig returns a Config with sensible pool defaults.
func DefaultConfig() *Config {
	return &Config{
		Type:            TypePostgres,
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// ConfigFromEnv loads config from environment variables.
// PORTFOLIO_DATABASE_TYPE, PORTFOLIO_DATABASE_DSN, PORTFOLIO_DATABASE_MAX_OPEN_CONNS,
// PORTFOLIO_DATABASE_MAX_IDLE_CONNS, PORTFOLIO_DATABASE_LOG_SQL
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("PORTFOLIO_DATABASE_TYPE"); v != "" {
		cfg.Type = strings.ToLower(v)
	}
	if v := os.Getenv("PORTFOLIO_DATABASE_DSN"); v != "" {
		cfg.DSN = v
	}
	if v := os.Getenv("PORTFOLIO_DATABASE_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxOpenConns = n
		}
	}
	if v := os.Getenv("PORTFOLIO_DATABASE_MAX_IDLE_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxIdleConns = n
		}
	}
	if v := os.Getenv("PORTFOLIO_DATABASE_LOG_SQL"); v != "" {
		cfg.LogSQL, _ = strconv.ParseBool(v)
	}

	return cfg
}

// Open connects to the configured database. Driver errors for unique and
// foreign key violations are translated to gorm.ErrDuplicatedKey and
// gorm.ErrForeignKeyViolated.
func Open(cfg *Config) (*gorm.DB, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case TypePostgres, "":
		dialector = postgres.Open(cfg.DSN)
	case TypeMySQL:
		dialector = mysql.Open(cfg.DSN)
	case TypeSQLite:
		dialector = sqlite.Open(SQLiteDSN(cfg.DSN))
	default:
		return nil, fmt.Errorf("unsupported database type %q (expected postgres, mysql or sqlite)", cfg.Type)
	}

	logLevel := logger.Silent
	if cfg.LogSQL {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Type, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	if cfg.Type == TypeSQLite {
		// SQLite allows a single writer; one connection avoids SQLITE_BUSY
		// under concurrent requests and keeps in-memory databases alive.
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}

// SQLiteDSN appends the foreign_keys pragma to a SQLite DSN so that every
// pooled connection enforces referential integrity.
func SQLiteDSN(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

// Ping checks that the database is reachable.
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
