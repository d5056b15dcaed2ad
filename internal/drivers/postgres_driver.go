package drivers

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type PostgreSQLDriver struct{}

func NewPostgreSQLDriver() *PostgreSQLDriver {
	return &PostgreSQLDriver{}
}

func (p *PostgreSQLDriver) Name() string {
	return "postgres"
}

func (p *PostgreSQLDriver) Connect(connectionString string, logLevel string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(connectionString), &gorm.Config{
		Logger: newGormLogger(logLevel),
	})
}

func (p *PostgreSQLDriver) GetSQLDB(db *gorm.DB) (*sql.DB, error) {
	return db.DB()
}

func (p *PostgreSQLDriver) SupportsTransactionalDDL() bool {
	return true
}

// AcquireLock takes a session-level advisory lock. Advisory locks belong to a
// session, so the lock and the unlock run on the same pinned connection.
func (p *PostgreSQLDriver) AcquireLock(ctx context.Context, db *sql.DB, key string) (func(), error) {
	lockID := advisoryLockID(key)

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("pin connection for advisory lock: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, lockID); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pg_advisory_lock(%d): %w", lockID, err)
	}

	release := func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
		conn.Close()
	}
	return release, nil
}

func (p *PostgreSQLDriver) HotTablesQuery() string {
	return `
		SELECT relname
		FROM pg_stat_user_tables
		WHERE n_live_tup >= ?
		ORDER BY relname`
}

// advisoryLockID hashes key to the int64 that pg_advisory_lock expects.
func advisoryLockID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF)
}
