package migrations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/shepherrrd/migrasafe/internal/models"
	"github.com/shepherrrd/migrasafe/internal/parser"
	"github.com/shepherrrd/migrasafe/internal/validator"
)

// Executor runs one script against the database. It is the only I/O the
// runner performs; an executor that wants to be cancellable watches ctx and
// returns an error, which halts the batch like any other failure.
type Executor func(ctx context.Context, script string) error

var (
	ErrDuplicateSequence = parser.ErrDuplicateSequence
	ErrNilExecutor       = errors.New("an executor is required unless dry running")
)

// Run validates and applies migrations in ascending order. A migration that
// fails validation is recorded and the run moves on, since nothing touched the
// database. A migration whose executor call fails is recorded and the run
// stops, since the schema state is no longer known.
//
// The returned error is only for caller mistakes or a failing OnResult hook;
// every per-migration outcome is in the results.
func Run(ctx context.Context, migrations []models.Migration, opts RunOptions, exec Executor) ([]models.RunResult, error) {
	if err := checkSequences(migrations); err != nil {
		return nil, err
	}
	if exec == nil && !opts.DryRun {
		return nil, ErrNilExecutor
	}

	logger := opts.logger()
	ordered := sortedAscending(migrations)
	results := make([]models.RunResult, 0, len(ordered))

	for _, m := range ordered {
		if opts.TargetVersion != nil && m.SequenceNumber > *opts.TargetVersion {
			break
		}

		start := time.Now()
		result, halt := apply(ctx, m, opts, exec)
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

func apply(ctx context.Context, m models.Migration, opts RunOptions, exec Executor) (models.RunResult, bool) {
	result := models.RunResult{Migration: m}
	v := validator.Validate(m)

	switch {
	case v.HasErrors() && !opts.Force:
		result.Status = models.StatusFailed
		result.Error = "validation failed: " + describeIssues(v.Errors)
		return result, false

	case len(v.Blocking()) > 0:
		result.Status = models.StatusFailed
		result.Error = "blocked even with force: " + describeIssues(v.Blocking())
		return result, false

	case v.HasWarnings() && !opts.Force && !opts.DryRun:
		result.Status = models.StatusSkipped
		result.Error = "skipped on warnings (force to apply): " + describeIssues(v.Warnings)
		return result, false

	case opts.DryRun:
		result.Status = models.StatusSkipped
		return result, false
	}

	if err := exec(ctx, m.ForwardScript); err != nil {
		result.Status = models.StatusFailed
		result.Error = err.Error()
		return result, true
	}

	result.Status = models.StatusApplied
	return result, false
}

func describeIssues(issues []models.Issue) string {
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		if issue.Line > 0 {
			parts = append(parts, fmt.Sprintf("%s (line %d): %s", issue.Code, issue.Line, issue.Message))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Code, issue.Message))
	}
	return strings.Join(parts, "; ")
}

// logResult logs execution failures as errors and everything else at Info
// when verbose, Debug otherwise.
func logResult(logger hclog.Logger, verbose bool, result models.RunResult, executionFailed bool) {
	args := []interface{}{
		"sequence", result.Migration.SequenceNumber,
		"name", result.Migration.Name,
		"status", string(result.Status),
		"duration_ms", result.DurationMs,
	}
	if result.Error != "" {
		args = append(args, "error", result.Error)
	}

	switch {
	case executionFailed:
		logger.Error("migration failed", args...)
	case verbose:
		logger.Info("migration processed", args...)
	default:
		logger.Debug("migration processed", args...)
	}
}

func checkSequences(migrations []models.Migration) error {
	seen := make(map[int]string, len(migrations))
	for _, m := range migrations {
		if prev, exists := seen[m.SequenceNumber]; exists {
			return fmt.Errorf("%w: %d is used by %q and %q", ErrDuplicateSequence, m.SequenceNumber, prev, m.Name)
		}
		seen[m.SequenceNumber] = m.Name
	}
	return nil
}

func sortedAscending(migrations []models.Migration) []models.Migration {
	ordered := make([]models.Migration, len(migrations))
	copy(ordered, migrations)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].SequenceNumber < ordered[j].SequenceNumber
	})
	return ordered
}

func sortedDescending(migrations []models.Migration) []models.Migration {
	ordered := make([]models.Migration, len(migrations))
	copy(ordered, migrations)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].SequenceNumber > ordered[j].SequenceNumber
	})
	return ordered
}
