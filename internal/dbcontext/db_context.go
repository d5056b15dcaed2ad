package dbcontext

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/shepherrrd/migrasafe/internal/drivers"
	"github.com/shepherrrd/migrasafe/internal/models"
	"github.com/shepherrrd/migrasafe/internal/sqltext"
	"gorm.io/gorm"
)

const DefaultHistoryTable = "schema_migrations"

var ErrLockUnsupported = errors.New("driver cannot lock the schema")

// DbContext is the persistence side of the engine: it executes scripts,
// keeps the history table and takes the schema lock.
type DbContext struct {
	db           *gorm.DB
	driver       drivers.DatabaseDriver
	historyTable string
}

type DbContextOptions struct {
	ConnectionString string
	Driver           drivers.DatabaseDriver
	LogLevel         string
	HistoryTable     string
}

func NewDbContext(options DbContextOptions) (*DbContext, error) {
	db, err := options.Driver.Connect(options.ConnectionString, options.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return NewDbContextFromDB(db, options.Driver, options.HistoryTable), nil
}

// NewDbContextFromDB wraps an already open connection.
func NewDbContextFromDB(db *gorm.DB, driver drivers.DatabaseDriver, historyTable string) *DbContext {
	if historyTable == "" {
		historyTable = DefaultHistoryTable
	}
	return &DbContext{
		db:           db,
		driver:       driver,
		historyTable: historyTable,
	}
}

func (dc *DbContext) GetDB() *gorm.DB {
	return dc.db
}

func (dc *DbContext) GetDriver() drivers.DatabaseDriver {
	return dc.driver
}

func (dc *DbContext) HistoryTable() string {
	return dc.historyTable
}

func (dc *DbContext) Close() error {
	sqlDB, err := dc.driver.GetSQLDB(dc.db)
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var concurrently = regexp.MustCompile(`(?i)\bCONCURRENTLY\b`)

// Exec runs script one statement at a time on a single connection. When the
// driver has transactional DDL and the script neither manages its own
// transaction nor builds indexes concurrently, all statements share one
// transaction. Exec has the shape of migrations.Executor.
func (dc *DbContext) Exec(ctx context.Context, script string) error {
	stmts := sqltext.Statements(script)
	if len(stmts) == 0 {
		return nil
	}

	run := func(tx *gorm.DB) error {
		for i, stmt := range stmts {
			if err := tx.Exec(stmt.Text).Error; err != nil {
				return fmt.Errorf("statement %d (line %d): %w", i+1, stmt.Line, err)
			}
		}
		return nil
	}

	db := dc.db.WithContext(ctx)
	if dc.wrapInTransaction(script, stmts) {
		return db.Transaction(run)
	}
	return db.Connection(run)
}

func (dc *DbContext) wrapInTransaction(script string, stmts []sqltext.Statement) bool {
	if !dc.driver.SupportsTransactionalDDL() || sqltext.HasTransactionMarkers(script) {
		return false
	}
	for _, stmt := range stmts {
		if concurrently.MatchString(stmt.Clean) {
			return false
		}
	}
	return true
}

func (dc *DbContext) EnsureHistoryTable(ctx context.Context) error {
	if err := dc.db.WithContext(ctx).Table(dc.historyTable).AutoMigrate(&models.HistoryRecord{}); err != nil {
		return fmt.Errorf("failed to create %s table: %w", dc.historyTable, err)
	}
	return nil
}

// History returns every applied-migration row ordered by sequence number.
func (dc *DbContext) History(ctx context.Context) ([]models.HistoryRecord, error) {
	var records []models.HistoryRecord
	err := dc.db.WithContext(ctx).Table(dc.historyTable).Order("sequence_number").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dc.historyTable, err)
	}
	return records, nil
}

func (dc *DbContext) Record(ctx context.Context, record models.HistoryRecord) error {
	if err := dc.db.WithContext(ctx).Table(dc.historyTable).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to record migration %d: %w", record.SequenceNumber, err)
	}
	return nil
}

// Forget deletes the history row of a rolled back migration.
func (dc *DbContext) Forget(ctx context.Context, sequenceNumber int) error {
	err := dc.db.WithContext(ctx).Table(dc.historyTable).
		Where("sequence_number = ?", sequenceNumber).
		Delete(&models.HistoryRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove migration %d from %s: %w", sequenceNumber, dc.historyTable, err)
	}
	return nil
}

// Lock takes the driver's schema lock for key.
func (dc *DbContext) Lock(ctx context.Context, key string) (func(), error) {
	sqlDB, err := dc.driver.GetSQLDB(dc.db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockUnsupported, err)
	}
	return dc.driver.AcquireLock(ctx, sqlDB, key)
}

// DiscoverHotTables lists tables holding at least minRows rows according to
// the database's own statistics. Drivers without statistics return nothing.
func (dc *DbContext) DiscoverHotTables(ctx context.Context, minRows int64) ([]string, error) {
	query := dc.driver.HotTablesQuery()
	if query == "" {
		return nil, nil
	}

	var tables []string
	if err := dc.db.WithContext(ctx).Raw(query, minRows).Scan(&tables).Error; err != nil {
		return nil, fmt.Errorf("failed to discover hot tables: %w", err)
	}
	return tables, nil
}
