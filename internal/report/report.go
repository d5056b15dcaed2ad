// Package report renders engine state and run outcomes as plain text for the
// console. Every function is pure and returns the same text for the same input.
package report

import (
	"fmt"
	"strings"

	"github.com/shepherrrd/migrasafe/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

var statusMarkers = map[models.RunStatus]string{
	models.StatusApplied:    "✓",
	models.StatusRolledBack: "↩",
	models.StatusSkipped:    "-",
	models.StatusFailed:     "✗",
}

func RenderStatus(status models.MigrationStatus) string {
	var b strings.Builder

	if status.HasCurrentVersion() {
		fmt.Fprintf(&b, "Current version: %03d\n", status.CurrentVersion)
	} else {
		b.WriteString("Current version: none\n")
	}
	fmt.Fprintf(&b, "Migrations: %d total, %d applied, %d pending\n",
		status.TotalCount, len(status.AppliedRecords), len(status.PendingMigrations))

	b.WriteString("\nApplied Migrations:\n")
	if len(status.AppliedRecords) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, rec := range status.AppliedRecords {
		fmt.Fprintf(&b, "  ✓ %03d %s (applied %s, %dms)\n",
			rec.SequenceNumber, rec.Name, rec.AppliedAt.UTC().Format(timeLayout), rec.ExecutionTimeMs)
	}

	b.WriteString("\nPending Migrations:\n")
	if len(status.PendingMigrations) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, m := range status.PendingMigrations {
		fmt.Fprintf(&b, "  - %03d %s\n", m.SequenceNumber, m.Name)
	}

	if len(status.Drifted) > 0 {
		b.WriteString("\nChanged Since Applied:\n")
		for _, d := range status.Drifted {
			fmt.Fprintf(&b, "  ! %03d %s (recorded %s, on disk %s)\n",
				d.SequenceNumber, d.Name, d.RecordedChecksum, d.CurrentChecksum)
		}
	}

	if len(status.Orphaned) > 0 {
		b.WriteString("\nApplied But Missing On Disk:\n")
		for _, rec := range status.Orphaned {
			fmt.Fprintf(&b, "  ? %03d %s\n", rec.SequenceNumber, rec.Name)
		}
	}

	return b.String()
}

func RenderRunResults(results []models.RunResult) string {
	counts := make(map[models.RunStatus]int, len(statusMarkers))
	for _, r := range results {
		counts[r.Status]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run summary: %d migrations, %d applied, %d rolled back, %d skipped, %d failed\n",
		len(results),
		counts[models.StatusApplied],
		counts[models.StatusRolledBack],
		counts[models.StatusSkipped],
		counts[models.StatusFailed])

	if len(results) == 0 {
		b.WriteString("  (nothing to do)\n")
		return b.String()
	}

	for _, r := range results {
		marker, ok := statusMarkers[r.Status]
		if !ok {
			marker = "?"
		}
		fmt.Fprintf(&b, "  %s %03d %s %s (%dms)", marker, r.Migration.SequenceNumber, r.Migration.Name, r.Status, r.DurationMs)
		if r.Error != "" {
			fmt.Fprintf(&b, ": %s", r.Error)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// RenderValidation lists the findings for one migration with its lock risk.
func RenderValidation(m models.Migration, result models.ValidationResult, risk models.LockRisk) string {
	verdict := "valid"
	if !result.IsValid {
		verdict = "invalid"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%03d %s: %s, lock risk %s\n", m.SequenceNumber, m.Name, verdict, risk)
	for _, issue := range result.Errors {
		writeIssue(&b, "error  ", issue)
	}
	for _, issue := range result.Warnings {
		writeIssue(&b, "warning", issue)
	}
	return b.String()
}

func writeIssue(b *strings.Builder, kind string, issue models.Issue) {
	fmt.Fprintf(b, "  %s %s", kind, issue.Code)
	if issue.Line > 0 {
		fmt.Fprintf(b, " (line %d)", issue.Line)
	}
	fmt.Fprintf(b, ": %s", issue.Message)
	if issue.Blocking {
		b.WriteString(" [blocking]")
	}
	if issue.Risk != nil {
		fmt.Fprintf(b, " [lock risk %s]", *issue.Risk)
	}
	b.WriteString("\n")
}
