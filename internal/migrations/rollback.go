package migrations

import (
	"context"
	"time"

	"github.com/shepherrrd/migrasafe/internal/models"
)

// Rollback runs reverse scripts newest first. It selects every migration
// above opts.TargetVersion when set, otherwise the newest opts.Steps. A
// migration without a reverse script is skipped; an executor failure stops
// the rollback.
func Rollback(ctx context.Context, migrations []models.Migration, opts RollbackOptions, exec Executor) ([]models.RunResult, error) {
	if err := checkSequences(migrations); err != nil {
		return nil, err
	}
	if exec == nil && !opts.DryRun {
		return nil, ErrNilExecutor
	}

	logger := opts.logger()
	selected := selectForRollback(sortedDescending(migrations), opts)
	results := make([]models.RunResult, 0, len(selected))

	for _, m := range selected {
		start := time.Now()
		result, halt := revert(ctx, m, opts, exec)
		result.DurationMs = time.Since(start).Milliseconds()

		logResult(logger, opts.Verbose, result, halt)
		results = append(results, result)
		if err := notify(ctx, opts.OnResult, result); err != nil {
			return results, err
		}
		if halt {
			break
		}
	}

	return results, nil
}

func selectForRollback(descending []models.Migration, opts RollbackOptions) []models.Migration {
	if opts.TargetVersion != nil {
		var selected []models.Migration
		for _, m := range descending {
			if m.SequenceNumber > *opts.TargetVersion {
				selected = append(selected, m)
			}
		}
		return selected
	}

	steps := opts.steps()
	if steps > len(descending) {
		steps = len(descending)
	}
	return descending[:steps]
}

func revert(ctx context.Context, m models.Migration, opts RollbackOptions, exec Executor) (models.RunResult, bool) {
	result := models.RunResult{Migration: m}

	if !m.HasReverse() {
		result.Status = models.StatusSkipped
		result.Error = "no reverse script to roll back with"
		return result, false
	}
	if opts.DryRun {
		result.Status = models.StatusSkipped
		return result, false
	}

	if err := exec(ctx, m.ReverseScript); err != nil {
		result.Status = models.StatusFailed
		result.Error = err.Error()
		return result, true
	}

	result.Status = models.StatusRolledBack
	return result, false
}
