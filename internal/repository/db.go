package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"vfxpublish/migrations"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// DB is a connection pool plus the SQL dialect its queries are built in.
type DB struct {
	*sqlx.DB
	Driver string
	Flavor sqlbuilder.Flavor
}

type Options struct {
	Driver string
	DSN    string
	// ConnectAttempts and RetryDelay apply to postgres only.
	ConnectAttempts int
	RetryDelay      time.Duration
}

// SQLiteDSN returns a modernc sqlite DSN for path with foreign keys enforced.
func SQLiteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + q.Encode()
}

// Open connects to the database described by opts.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*DB, error) {
	switch opts.Driver {
	case DriverPostgres:
		db, err := connectWithRetry(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		return &DB{DB: db, Driver: DriverPostgres, Flavor: sqlbuilder.PostgreSQL}, nil
	case DriverSQLite:
		db, err := sqlx.Open(DriverSQLite, opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// A single writer avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
		}
		return &DB{DB: db, Driver: DriverSQLite, Flavor: sqlbuilder.SQLite}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

func connectWithRetry(ctx context.Context, opts Options, logger *zap.Logger) (*sqlx.DB, error) {
	attempts := opts.ConnectAttempts
	if attempts <= 0 {
		attempts = 5
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		db, err := sqlx.ConnectContext(ctx, DriverPostgres, opts.DSN)
		if err == nil {
			return db, nil
		}
		lastErr = err
		logger.Warn("Failed to connect to database",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", attempts),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", attempts, lastErr)
}

type migrationLogger struct {
	logger *zap.SugaredLogger
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.logger.Infof(format, v...)
}

func (l migrationLogger) Verbose() bool {
	return false
}

// Migrate applies the embedded migrations of the DB's driver. A dirty schema
// is forced back to its recorded version before migrating up.
func (db *DB) Migrate(logger *zap.Logger) error {
	var (
		driver database.Driver
		err    error
	)
	switch db.Driver {
	case DriverPostgres:
		driver, err = postgres.WithInstance(db.DB.DB, &postgres.Config{})
	case DriverSQLite:
		driver, err = sqlite.WithInstance(db.DB.DB, &sqlite.Config{})
	default:
		err = fmt.Errorf("unsupported database driver %q", db.Driver)
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, db.Driver)
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	// The migrate instance is not closed: closing it would close db.
	m, err := migrate.NewWithInstance("iofs", source, db.Driver, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrationLogger{logger: logger.Sugar()}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		logger.Warn("Found dirty database state, forcing version", zap.Uint("version", version))
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	current, _, _ := m.Version()
	logger.Info("Database schema up to date", zap.String("driver", db.Driver), zap.Uint("version", current))
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
