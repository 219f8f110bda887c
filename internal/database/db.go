// Package database provides database setup, models, and data access layer (Store).
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/armtemiy/armlab-bot/migrations"

	_ "github.com/jackc/pgx/v5/stdlib" //revive:disable:blank-imports
	_ "modernc.org/sqlite"             //revive:disable:blank-imports
)

// Driver names as registered with database/sql.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Target is a parsed DATABASE_URL.
type Target struct {
	Driver string
	DSN    string
}

// ParseURL maps a DATABASE_URL onto a registered driver.
// postgres:// and postgresql:// select pgx; sqlite://path, sqlite:path and bare
// file paths select the embedded SQLite driver.
func ParseURL(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, errors.New("database url is empty")
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return Target{Driver: DriverPostgres, DSN: raw}, nil
	case strings.HasPrefix(lower, "sqlite://"):
		return Target{Driver: DriverSQLite, DSN: raw[len("sqlite://"):]}, nil
	case strings.HasPrefix(lower, "sqlite:"):
		return Target{Driver: DriverSQLite, DSN: raw[len("sqlite:"):]}, nil
	case strings.Contains(lower, "://"):
		return Target{}, fmt.Errorf("unsupported database url scheme: %q", raw)
	default:
		return Target{Driver: DriverSQLite, DSN: raw}, nil
	}
}

// NewDB connects, applies migrations, and returns a new database connection pool.
func NewDB(databaseURL string) (*sqlx.DB, error) {
	target, err := ParseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect(target.Driver, target.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if target.Driver == DriverSQLite {
		// SQLite doesn't support concurrent writes, so max open conns = 1
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := ApplyMigrations(db.DB, target); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Error closing database after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("Database connected and migrations applied successfully", "driver", target.Driver)
	return db, nil
}

// CloseDB closes the database connection pool.
func CloseDB(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Error("Error closing database connection", "error", err)
	} else {
		slog.Info("Database connection closed successfully.")
	}
}

// ApplyMigrations runs the embedded migrations of the target's dialect.
func ApplyMigrations(db *sql.DB, target Target) error {
	if db == nil {
		return errors.New("database connection is nil, cannot apply migrations")
	}

	var (
		dir      string
		dbName   string
		dbDriver migratedb.Driver
		err      error
	)
	switch target.Driver {
	case DriverSQLite:
		dir, dbName = "sqlite", "sqlite"
		dbDriver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	case DriverPostgres:
		dir, dbName = "postgres", "pgx5"
		dbDriver, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	default:
		return fmt.Errorf("no migrations for driver %q", target.Driver)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s migration driver: %w", dbName, err)
	}

	slog.Info("Applying database migrations...", "dialect", dir)

	sourceDriver, err := iofs.New(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("failed to create embed source driver instance: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, dbName, dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	migrateErr := migrator.Up()
	if migrateErr != nil {
		if errors.Is(migrateErr, migrate.ErrNoChange) {
			slog.Info("No database migrations to apply.")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", migrateErr)
	}

	slog.Info("Database migrations applied successfully.")
	return nil
}

// RedactURL strips credentials from a database URL for logging.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User(u.User.Username())
	return u.String()
}
