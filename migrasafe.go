// Package migrasafe checks, sequences and applies versioned SQL migrations.
//
// A migration is a file named NNN_name.sql whose content holds a forward script
// and, after a "-- DOWN" or "-- ROLLBACK" line, an optional reverse script.
// Parse turns files into Migrations, Validate flags destructive and lock-prone
// statements, Run and Rollback execute batches through an Executor, and
// ComputeStatus with RenderStatus report what is applied and what is pending.
package migrasafe

import (
	"context"
	"io/fs"

	"github.com/shepherrrd/migrasafe/internal/dbcontext"
	"github.com/shepherrrd/migrasafe/internal/drivers"
	"github.com/shepherrrd/migrasafe/internal/migrations"
	"github.com/shepherrrd/migrasafe/internal/models"
	"github.com/shepherrrd/migrasafe/internal/parser"
	"github.com/shepherrrd/migrasafe/internal/report"
	"github.com/shepherrrd/migrasafe/internal/risk"
	"github.com/shepherrrd/migrasafe/internal/source"
	"github.com/shepherrrd/migrasafe/internal/validator"
)

type Migration = models.Migration
type Issue = models.Issue
type ValidationResult = models.ValidationResult
type RunResult = models.RunResult
type RunStatus = models.RunStatus
type HistoryRecord = models.HistoryRecord
type MigrationStatus = models.MigrationStatus
type LockRisk = models.LockRisk
type Source = parser.Source

type Executor = migrations.Executor
type RunOptions = migrations.RunOptions
type RollbackOptions = migrations.RollbackOptions
type ResultHook = migrations.ResultHook

type DbContext = dbcontext.DbContext

const (
	StatusApplied    = models.StatusApplied
	StatusRolledBack = models.StatusRolledBack
	StatusSkipped    = models.StatusSkipped
	StatusFailed     = models.StatusFailed

	LockRiskLow      = models.LockRiskLow
	LockRiskMedium   = models.LockRiskMedium
	LockRiskHigh     = models.LockRiskHigh
	LockRiskCritical = models.LockRiskCritical
)

var (
	ErrInvalidFilename   = parser.ErrInvalidFilename
	ErrDuplicateSequence = parser.ErrDuplicateSequence
	ErrNilExecutor       = migrations.ErrNilExecutor
)

var DefaultHotTables = risk.DefaultHotTables

// LoadSources reads every .sql file under fsys, for example an embed.FS or
// os.DirFS("migrations").
func LoadSources(fsys fs.FS) ([]Source, error) {
	return source.Load(fsys)
}

func Parse(filename, content string) (Migration, error) {
	return parser.Parse(filename, content)
}

func ParseAll(sources []Source) ([]Migration, error) {
	return parser.ParseAll(sources)
}

func ValidateMigrationName(filename string) error {
	return parser.ValidateMigrationName(filename)
}

func GenerateChecksum(script string) string {
	return parser.GenerateChecksum(script)
}

func Validate(m Migration) ValidationResult {
	return validator.Validate(m)
}

func EstimateLockRisk(sql string, hotTables []string) LockRisk {
	return risk.EstimateLockRisk(sql, hotTables)
}

func Run(ctx context.Context, ms []Migration, opts RunOptions, exec Executor) ([]RunResult, error) {
	return migrations.Run(ctx, ms, opts, exec)
}

func Rollback(ctx context.Context, ms []Migration, opts RollbackOptions, exec Executor) ([]RunResult, error) {
	return migrations.Rollback(ctx, ms, opts, exec)
}

func ComputeStatus(all []Migration, applied []HistoryRecord) MigrationStatus {
	return migrations.ComputeStatus(all, applied)
}

func RenderStatus(status MigrationStatus) string {
	return report.RenderStatus(status)
}

func RenderRunResults(results []RunResult) string {
	return report.RenderRunResults(results)
}

func RenderValidation(m Migration, result ValidationResult, lockRisk LockRisk) string {
	return report.RenderValidation(m, result, lockRisk)
}

// Version returns a pointer to v for RunOptions.TargetVersion and
// RollbackOptions.TargetVersion.
func Version(v int) *int {
	return migrations.Version(v)
}

// NewDbContext connects with one of the built-in drivers: postgres, mysql or
// sqlite. Scripts run through the returned context's Exec method.
func NewDbContext(connectionString string, driverType string) (*DbContext, error) {
	driver, err := drivers.NewDriver(driverType)
	if err != nil {
		return nil, err
	}

	return dbcontext.NewDbContext(dbcontext.DbContextOptions{
		ConnectionString: connectionString,
		Driver:           driver,
	})
}
