package models

import (
	"time"
)

// Migration is one parsed migration unit. It is built once by the parser and
// only read afterwards. An empty ReverseScript means the migration cannot be
// rolled back.
type Migration struct {
	SequenceNumber int
	Name           string
	Filename       string
	ForwardScript  string
	ReverseScript  string
	Checksum       string
}

func (m Migration) HasReverse() bool {
	return m.ReverseScript != ""
}

// HistoryRecord is a row of the applied-migrations table.
type HistoryRecord struct {
	SequenceNumber  int       `gorm:"primaryKey;autoIncrement:false"`
	Name            string    `gorm:"not null"`
	Checksum        string    `gorm:"not null"`
	AppliedAt       time.Time `gorm:"not null"`
	ExecutionTimeMs int64
	RunID           string `gorm:"size:36"`
}

// Drift pairs a history row with the on-disk migration whose checksum no
// longer matches it.
type Drift struct {
	SequenceNumber   int
	Name             string
	RecordedChecksum string
	CurrentChecksum  string
}

type MigrationStatus struct {
	// CurrentVersion is the highest applied sequence number, 0 when none.
	CurrentVersion    int
	PendingMigrations []Migration
	AppliedRecords    []HistoryRecord
	TotalCount        int
	Drifted           []Drift
	Orphaned          []HistoryRecord
}

func (s MigrationStatus) HasCurrentVersion() bool {
	return s.CurrentVersion > 0
}
