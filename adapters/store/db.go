// Package store persists classification runs and their consensus rows in
// PostgreSQL or SQLite through sqlx.
package store

import (
	"context"
	"strings"

	"llmusic/internal/errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// DriverFor maps a DATABASE_URL to a driver name and data source. URLs with
// a postgres scheme go to lib/pq; "sqlite:" URLs and plain paths go to the
// pure-Go SQLite driver.
func DriverFor(url string) (driver, dsn string) {
	url = strings.TrimSpace(url)
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres, url
	case strings.HasPrefix(url, "sqlite://"):
		return DriverSQLite, strings.TrimPrefix(url, "sqlite://")
	case strings.HasPrefix(url, "sqlite:"):
		return DriverSQLite, strings.TrimPrefix(url, "sqlite:")
	default:
		return DriverSQLite, url
	}
}

// Open connects to url and brings the schema up to date.
func Open(ctx context.Context, url string) (*sqlx.DB, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is empty")
	}
	driver, dsn := DriverFor(url)

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	if driver == DriverSQLite {
		// one connection keeps :memory: databases shared and serialises writers
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, errors.DatabaseError("failed to enable foreign keys", err)
		}
	}

	if err := NewMigrationRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.DatabaseError("failed to run migrations", err)
	}
	return db, nil
}
