package report

import (
	"testing"
	"time"

	"github.com/shepherrrd/migrasafe/internal/models"
	"github.com/stretchr/testify/assert"
)

func mig(seq int, name string) models.Migration {
	return models.Migration{SequenceNumber: seq, Name: name}
}

func TestRenderStatus(t *testing.T) {
	status := models.MigrationStatus{
		CurrentVersion: 2,
		TotalCount:     3,
		AppliedRecords: []models.HistoryRecord{
			{SequenceNumber: 1, Name: "create_users", AppliedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), ExecutionTimeMs: 12},
			{SequenceNumber: 2, Name: "add_email", AppliedAt: time.Date(2024, 1, 2, 3, 5, 0, 0, time.UTC), ExecutionTimeMs: 3},
		},
		PendingMigrations: []models.Migration{mig(3, "add_index")},
	}

	want := "Current version: 002\n" +
		"Migrations: 3 total, 2 applied, 1 pending\n" +
		"\n" +
		"Applied Migrations:\n" +
		"  ✓ 001 create_users (applied 2024-01-02 03:04:05, 12ms)\n" +
		"  ✓ 002 add_email (applied 2024-01-02 03:05:00, 3ms)\n" +
		"\n" +
		"Pending Migrations:\n" +
		"  - 003 add_index\n"

	assert.Equal(t, want, RenderStatus(status))
}

func TestRenderStatus_Empty(t *testing.T) {
	want := "Current version: none\n" +
		"Migrations: 0 total, 0 applied, 0 pending\n" +
		"\n" +
		"Applied Migrations:\n" +
		"  (none)\n" +
		"\n" +
		"Pending Migrations:\n" +
		"  (none)\n"

	assert.Equal(t, want, RenderStatus(models.MigrationStatus{}))
}

func TestRenderStatus_DriftAndOrphans(t *testing.T) {
	applied := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	status := models.MigrationStatus{
		CurrentVersion: 9,
		TotalCount:     1,
		AppliedRecords: []models.HistoryRecord{
			{SequenceNumber: 1, Name: "a", AppliedAt: applied},
			{SequenceNumber: 9, Name: "gone", AppliedAt: applied},
		},
		PendingMigrations: []models.Migration{},
		Drifted: []models.Drift{
			{SequenceNumber: 1, Name: "a", RecordedChecksum: "aaaa", CurrentChecksum: "bbbb"},
		},
		Orphaned: []models.HistoryRecord{{SequenceNumber: 9, Name: "gone"}},
	}

	got := RenderStatus(status)

	assert.Contains(t, got, "\nChanged Since Applied:\n  ! 001 a (recorded aaaa, on disk bbbb)\n")
	assert.Contains(t, got, "\nApplied But Missing On Disk:\n  ? 009 gone\n")
	assert.Contains(t, got, "Pending Migrations:\n  (none)\n")
}

func TestRenderStatus_Deterministic(t *testing.T) {
	status := models.MigrationStatus{PendingMigrations: []models.Migration{mig(1, "a"), mig(2, "b")}, TotalCount: 2}
	assert.Equal(t, RenderStatus(status), RenderStatus(status))
}

func TestRenderRunResults(t *testing.T) {
	results := []models.RunResult{
		{Migration: mig(1, "a"), Status: models.StatusApplied, DurationMs: 5},
		{Migration: mig(2, "b"), Status: models.StatusFailed, Error: "boom"},
		{Migration: mig(3, "c"), Status: models.StatusSkipped},
		{Migration: mig(4, "d"), Status: models.StatusRolledBack, DurationMs: 1},
	}

	want := "Run summary: 4 migrations, 1 applied, 1 rolled back, 1 skipped, 1 failed\n" +
		"  ✓ 001 a applied (5ms)\n" +
		"  ✗ 002 b failed (0ms): boom\n" +
		"  - 003 c skipped (0ms)\n" +
		"  ↩ 004 d rolled_back (1ms)\n"

	assert.Equal(t, want, RenderRunResults(results))
}

func TestRenderRunResults_Empty(t *testing.T) {
	want := "Run summary: 0 migrations, 0 applied, 0 rolled back, 0 skipped, 0 failed\n" +
		"  (nothing to do)\n"

	assert.Equal(t, want, RenderRunResults(nil))
}

func TestRenderValidation(t *testing.T) {
	medium := models.LockRiskMedium
	result := models.ValidationResult{
		IsValid: false,
		Errors: []models.Issue{
			{Code: "DROP_DATABASE", Message: "DROP DATABASE is never allowed", Line: 2, Fatal: true, Blocking: true},
		},
		Warnings: []models.Issue{
			{Code: "INDEX_WITHOUT_CONCURRENTLY", Message: "blocks writes", Line: 1, Risk: &medium},
			{Code: "MISSING_ROLLBACK", Message: "no reverse script"},
		},
	}

	want := "007 drop_all: invalid, lock risk high\n" +
		"  error   DROP_DATABASE (line 2): DROP DATABASE is never allowed [blocking]\n" +
		"  warning INDEX_WITHOUT_CONCURRENTLY (line 1): blocks writes [lock risk medium]\n" +
		"  warning MISSING_ROLLBACK: no reverse script\n"

	assert.Equal(t, want, RenderValidation(mig(7, "drop_all"), result, models.LockRiskHigh))
}

func TestRenderValidation_Valid(t *testing.T) {
	got := RenderValidation(mig(1, "create_users"), models.ValidationResult{IsValid: true}, models.LockRiskLow)
	assert.Equal(t, "001 create_users: valid, lock risk low\n", got)
}
