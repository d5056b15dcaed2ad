package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/shepherrrd/migrasafe/internal/dbcontext"
	"github.com/shepherrrd/migrasafe/internal/models"
)

// LockKey names the schema lock every manager takes before changing anything.
const LockKey = "migrasafe_schema_lock"

// MigrationManager drives Run and Rollback against a live database: it reads
// the history table to find what is pending or applied, holds the schema lock
// for the duration of a batch and keeps the history table in step with the
// results.
type MigrationManager struct {
	context *dbcontext.DbContext
	logger  hclog.Logger
}

func NewMigrationManager(ctx *dbcontext.DbContext, logger hclog.Logger) *MigrationManager {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &MigrationManager{
		context: ctx,
		logger:  logger,
	}
}

func (mm *MigrationManager) EnsureMigrationsTable(ctx context.Context) error {
	return mm.context.EnsureHistoryTable(ctx)
}

func (mm *MigrationManager) Status(ctx context.Context, all []models.Migration) (models.MigrationStatus, error) {
	if err := mm.EnsureMigrationsTable(ctx); err != nil {
		return models.MigrationStatus{}, err
	}

	history, err := mm.context.History(ctx)
	if err != nil {
		return models.MigrationStatus{}, err
	}
	return ComputeStatus(all, history), nil
}

// UpdateDatabase applies the pending migrations among all. Each applied
// migration is recorded in the history table before the next one runs.
func (mm *MigrationManager) UpdateDatabase(ctx context.Context, all []models.Migration, opts RunOptions) ([]models.RunResult, error) {
	if err := mm.EnsureMigrationsTable(ctx); err != nil {
		return nil, err
	}

	release, err := mm.lock(ctx, opts.DryRun)
	if err != nil {
		return nil, err
	}
	defer release()

	history, err := mm.context.History(ctx)
	if err != nil {
		return nil, err
	}
	pending := ComputeStatus(all, history).PendingMigrations
	if len(pending) == 0 {
		mm.logger.Info("no pending migrations")
		return []models.RunResult{}, nil
	}

	opts.RunID = mm.runID(opts.RunID)
	if opts.Logger == nil {
		opts.Logger = mm.logger
	}
	opts.OnResult = chainHooks(mm.recordApplied(opts.RunID), opts.OnResult)
	mm.logger.Info("applying migrations", "run_id", opts.RunID, "pending", len(pending), "dry_run", opts.DryRun)

	return Run(ctx, pending, opts, mm.context.Exec)
}

// RollbackDatabase rolls back among the applied migrations only. The history
// row of each rolled back migration is removed before the next one runs.
func (mm *MigrationManager) RollbackDatabase(ctx context.Context, all []models.Migration, opts RollbackOptions) ([]models.RunResult, error) {
	if err := mm.EnsureMigrationsTable(ctx); err != nil {
		return nil, err
	}

	release, err := mm.lock(ctx, opts.DryRun)
	if err != nil {
		return nil, err
	}
	defer release()

	history, err := mm.context.History(ctx)
	if err != nil {
		return nil, err
	}
	applied := appliedOnly(all, history)
	if len(applied) == 0 {
		mm.logger.Info("no migrations to roll back")
		return []models.RunResult{}, nil
	}

	opts.RunID = mm.runID(opts.RunID)
	if opts.Logger == nil {
		opts.Logger = mm.logger
	}
	opts.OnResult = chainHooks(mm.forgetRolledBack, opts.OnResult)
	mm.logger.Info("rolling back migrations", "run_id", opts.RunID, "applied", len(applied), "dry_run", opts.DryRun)

	return Rollback(ctx, applied, opts, mm.context.Exec)
}

func (mm *MigrationManager) recordApplied(runID string) ResultHook {
	return func(ctx context.Context, r models.RunResult) error {
		if r.Status != models.StatusApplied {
			return nil
		}
		return mm.context.Record(ctx, models.HistoryRecord{
			SequenceNumber:  r.Migration.SequenceNumber,
			Name:            r.Migration.Name,
			Checksum:        r.Migration.Checksum,
			AppliedAt:       time.Now().UTC(),
			ExecutionTimeMs: r.DurationMs,
			RunID:           runID,
		})
	}
}

func (mm *MigrationManager) forgetRolledBack(ctx context.Context, r models.RunResult) error {
	if r.Status != models.StatusRolledBack {
		return nil
	}
	return mm.context.Forget(ctx, r.Migration.SequenceNumber)
}

// chainHooks runs first, then next if set.
func chainHooks(first, next ResultHook) ResultHook {
	if next == nil {
		return first
	}
	return func(ctx context.Context, r models.RunResult) error {
		if err := first(ctx, r); err != nil {
			return err
		}
		return next(ctx, r)
	}
}

func (mm *MigrationManager) lock(ctx context.Context, dryRun bool) (func(), error) {
	if dryRun {
		return func() {}, nil
	}
	release, err := mm.context.Lock(ctx, LockKey)
	if err != nil {
		return nil, fmt.Errorf("failed to lock schema: %w", err)
	}
	return release, nil
}

func (mm *MigrationManager) runID(given string) string {
	if given != "" {
		return given
	}
	return uuid.NewString()
}

func appliedOnly(all []models.Migration, history []models.HistoryRecord) []models.Migration {
	recorded := make(map[int]bool, len(history))
	for _, rec := range history {
		recorded[rec.SequenceNumber] = true
	}

	var applied []models.Migration
	for _, m := range all {
		if recorded[m.SequenceNumber] {
			applied = append(applied, m)
		}
	}
	return applied
}
