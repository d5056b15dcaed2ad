package drivers

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// lockTimeoutSeconds bounds how long GET_LOCK waits for another run.
const lockTimeoutSeconds = 60

type MySQLDriver struct{}

func NewMySQLDriver() *MySQLDriver {
	return &MySQLDriver{}
}

func (m *MySQLDriver) Name() string {
	return "mysql"
}

func (m *MySQLDriver) Connect(connectionString string, logLevel string) (*gorm.DB, error) {
	return gorm.Open(mysql.Open(connectionString), &gorm.Config{
		Logger: newGormLogger(logLevel),
	})
}

func (m *MySQLDriver) GetSQLDB(db *gorm.DB) (*sql.DB, error) {
	return db.DB()
}

// SupportsTransactionalDDL is false: MySQL commits implicitly around DDL.
func (m *MySQLDriver) SupportsTransactionalDDL() bool {
	return false
}

func (m *MySQLDriver) AcquireLock(ctx context.Context, db *sql.DB, key string) (func(), error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("pin connection for named lock: %w", err)
	}

	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, ?)`, key, lockTimeoutSeconds).Scan(&got); err != nil {
		conn.Close()
		return nil, fmt.Errorf("GET_LOCK(%s): %w", key, err)
	}
	if !got.Valid || got.Int64 != 1 {
		conn.Close()
		return nil, fmt.Errorf("GET_LOCK(%s): timed out after %ds", key, lockTimeoutSeconds)
	}

	release := func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT RELEASE_LOCK(?)`, key)
		conn.Close()
	}
	return release, nil
}

func (m *MySQLDriver) HotTablesQuery() string {
	return `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = DATABASE()
			AND TABLE_ROWS >= ?
		ORDER BY TABLE_NAME`
}
