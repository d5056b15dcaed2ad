package migrations

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/shepherrrd/migrasafe/internal/models"
)

// RunOptions controls a forward run. A nil TargetVersion applies everything.
type RunOptions struct {
	TargetVersion *int
	DryRun        bool
	Verbose       bool
	// Force applies migrations that have warnings or non-blocking errors.
	Force  bool
	Logger hclog.Logger
	RunID  string
	// OnResult, when set, is called with each result as soon as it is
	// decided, before the next migration starts. An error from it stops the
	// batch and is returned from Run.
	OnResult ResultHook
}

// RollbackOptions controls a rollback. With TargetVersion set every migration
// above it is rolled back and Steps is ignored; otherwise the newest Steps
// migrations are, one when Steps is below 1.
type RollbackOptions struct {
	Steps         int
	TargetVersion *int
	DryRun        bool
	Verbose       bool
	Logger        hclog.Logger
	RunID         string
	// OnResult behaves as in RunOptions.
	OnResult ResultHook
}

// ResultHook receives each migration outcome while a batch is in progress.
type ResultHook func(ctx context.Context, result models.RunResult) error

func (o RunOptions) logger() hclog.Logger {
	return withRunID(o.Logger, o.RunID)
}

func (o RollbackOptions) logger() hclog.Logger {
	return withRunID(o.Logger, o.RunID)
}

func (o RollbackOptions) steps() int {
	if o.Steps < 1 {
		return 1
	}
	return o.Steps
}

func notify(ctx context.Context, hook ResultHook, result models.RunResult) error {
	if hook == nil {
		return nil
	}
	if err := hook(ctx, result); err != nil {
		return fmt.Errorf("migration %d: %w", result.Migration.SequenceNumber, err)
	}
	return nil
}

func withRunID(logger hclog.Logger, runID string) hclog.Logger {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if runID != "" {
		logger = logger.With("run_id", runID)
	}
	return logger
}

// Version is a convenience for filling TargetVersion.
func Version(v int) *int {
	return &v
}
