// Package repo is the GORM persistence layer for pledges, tracking links,
// link clicks and idempotency records. Functions take the *gorm.DB to run
// on, so callers compose them inside their own transactions.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-pledge-backend/internal/domain"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SlowQuery is the threshold above which statements are logged at warn.
const SlowQuery = 500 * time.Millisecond

// poolSize per driver. SQLite serialises writers anyway; a small pool keeps
// lock waits inside busy_timeout.
var poolSize = map[string]int{
	DriverSQLite:   10,
	DriverPostgres: 25,
}

// sqlitePragmas run on every new SQLite database.
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

// Open connects to driver ("sqlite" or "postgres"), routes GORM's own
// warnings and slow statements to lg and installs the tracing plugin.
func Open(driver, dsn string, lg zerolog.Logger) (*gorm.DB, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = DriverSQLite
	}

	gcfg := &gorm.Config{
		Logger: gormlogger.New(gormWriter{lg}, gormlogger.Config{
			SlowThreshold:             SlowQuery,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		if err := checkSQLiteDir(dsn); err != nil {
			return nil, fmt.Errorf("repo: sqlite %q: %w", dsn, err)
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("repo: unknown driver %q", driver)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("repo: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		for _, p := range sqlitePragmas {
			if err := db.Exec(p).Error; err != nil {
				return nil, fmt.Errorf("repo: %s: %w", p, err)
			}
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		n := poolSize[driver]
		sqlDB.SetMaxOpenConns(n)
		sqlDB.SetMaxIdleConns(n)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("repo: tracing plugin: %w", err)
	}
	return db, nil
}

// gormWriter receives only warn-and-above output from GORM's logger.
type gormWriter struct{ lg zerolog.Logger }

func (w gormWriter) Printf(format string, args ...any) {
	w.lg.Warn().Msgf(format, args...)
}

// checkSQLiteDir reports a missing parent directory up front; the driver
// would otherwise fail with an opaque "out of memory (14)".
func checkSQLiteDir(dsn string) error {
	if dsn == "" || dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	_, err := os.Stat(dir)
	return err
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Pledge{},
		&domain.TrackingLink{},
		&domain.LinkClick{},
		&domain.Idempotency{},
	)
}
