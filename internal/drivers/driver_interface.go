package drivers

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"
)

type DatabaseDriver interface {
	Name() string
	Connect(connectionString string, logLevel string) (*gorm.DB, error)
	GetSQLDB(db *gorm.DB) (*sql.DB, error)
	// SupportsTransactionalDDL reports whether schema changes can be rolled
	// back as part of a transaction.
	SupportsTransactionalDDL() bool
	// AcquireLock takes a lock scoped to key that keeps other migration runs
	// out until release is called.
	AcquireLock(ctx context.Context, db *sql.DB, key string) (release func(), err error)
	// HotTablesQuery returns a query with one row-count parameter listing the
	// tables at or above that size, or "" when the database keeps no such
	// statistics.
	HotTablesQuery() string
}

func NewDriver(driverType string) (DatabaseDriver, error) {
	switch driverType {
	case "postgres", "postgresql":
		return NewPostgreSQLDriver(), nil
	case "mysql":
		return NewMySQLDriver(), nil
	case "sqlite", "sqlite3":
		return NewSQLiteDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driverType)
	}
}
