package drivers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteDriver locks with an in-process mutex. SQLite has a single writer and
// its own file locking protects against other processes.
type SQLiteDriver struct {
	mu sync.Mutex
}

func NewSQLiteDriver() *SQLiteDriver {
	return &SQLiteDriver{}
}

func (s *SQLiteDriver) Name() string {
	return "sqlite"
}

func (s *SQLiteDriver) Connect(connectionString string, logLevel string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(connectionString), &gorm.Config{
		Logger: newGormLogger(logLevel),
	})
}

func (s *SQLiteDriver) GetSQLDB(db *gorm.DB) (*sql.DB, error) {
	return db.DB()
}

func (s *SQLiteDriver) SupportsTransactionalDDL() bool {
	return true
}

func (s *SQLiteDriver) AcquireLock(ctx context.Context, _ *sql.DB, _ string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquire sqlite lock: %w", err)
	}

	s.mu.Lock()
	return s.mu.Unlock, nil
}

func (s *SQLiteDriver) HotTablesQuery() string {
	return ""
}
