package migrations

import (
	"sort"

	"github.com/shepherrrd/migrasafe/internal/models"
)

// ComputeStatus compares the migrations on disk with the history rows by
// sequence number. Besides pending and applied sets it reports drift (a
// recorded checksum that no longer matches the script) and orphaned rows
// (history with no migration on disk).
func ComputeStatus(all []models.Migration, applied []models.HistoryRecord) models.MigrationStatus {
	recorded := make(map[int]models.HistoryRecord, len(applied))
	for _, rec := range applied {
		recorded[rec.SequenceNumber] = rec
	}
	onDisk := make(map[int]bool, len(all))

	status := models.MigrationStatus{
		PendingMigrations: []models.Migration{},
		AppliedRecords:    make([]models.HistoryRecord, len(applied)),
		TotalCount:        len(all),
	}
	copy(status.AppliedRecords, applied)
	sort.Slice(status.AppliedRecords, func(i, j int) bool {
		return status.AppliedRecords[i].SequenceNumber < status.AppliedRecords[j].SequenceNumber
	})

	for _, m := range sortedAscending(all) {
		onDisk[m.SequenceNumber] = true

		rec, ok := recorded[m.SequenceNumber]
		if !ok {
			status.PendingMigrations = append(status.PendingMigrations, m)
			continue
		}
		if rec.Checksum != "" && rec.Checksum != m.Checksum {
			status.Drifted = append(status.Drifted, models.Drift{
				SequenceNumber:   m.SequenceNumber,
				Name:             m.Name,
				RecordedChecksum: rec.Checksum,
				CurrentChecksum:  m.Checksum,
			})
		}
	}

	for _, rec := range status.AppliedRecords {
		if rec.SequenceNumber > status.CurrentVersion {
			status.CurrentVersion = rec.SequenceNumber
		}
		if !onDisk[rec.SequenceNumber] {
			status.Orphaned = append(status.Orphaned, rec)
		}
	}

	return status
}
