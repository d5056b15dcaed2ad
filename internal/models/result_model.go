package models

// LockRisk is a qualitative estimate of how badly a script blocks concurrent
// access to the tables it touches.
type LockRisk int

const (
	LockRiskLow LockRisk = iota
	LockRiskMedium
	LockRiskHigh
	LockRiskCritical
)

func (r LockRisk) String() string {
	switch r {
	case LockRiskLow:
		return "low"
	case LockRiskMedium:
		return "medium"
	case LockRiskHigh:
		return "high"
	case LockRiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Weight is the numeric level used when combining risks.
func (r LockRisk) Weight() int {
	switch r {
	case LockRiskMedium:
		return 2
	case LockRiskHigh:
		return 3
	case LockRiskCritical:
		return 4
	default:
		return 1
	}
}

// LockRiskFromLevel maps a combined level back to a label: 0-1 low, 2 medium,
// 3 high, 4 and above critical.
func LockRiskFromLevel(level int) LockRisk {
	switch {
	case level >= 4:
		return LockRiskCritical
	case level == 3:
		return LockRiskHigh
	case level == 2:
		return LockRiskMedium
	default:
		return LockRiskLow
	}
}

// Issue is a single validator finding. Line is 1-based and 0 when the finding
// is not tied to a statement.
type Issue struct {
	Code     string
	Message  string
	Line     int
	Fatal    bool
	Blocking bool
	Risk     *LockRisk
}

type ValidationResult struct {
	IsValid  bool
	Warnings []Issue
	Errors   []Issue
}

func (v ValidationResult) HasWarnings() bool {
	return len(v.Warnings) > 0
}

func (v ValidationResult) HasErrors() bool {
	return len(v.Errors) > 0
}

// Blocking returns the errors that no amount of forcing can get past.
func (v ValidationResult) Blocking() []Issue {
	var blocking []Issue
	for _, issue := range v.Errors {
		if issue.Blocking {
			blocking = append(blocking, issue)
		}
	}
	return blocking
}

type RunStatus string

const (
	StatusApplied    RunStatus = "applied"
	StatusRolledBack RunStatus = "rolled_back"
	StatusSkipped    RunStatus = "skipped"
	StatusFailed     RunStatus = "failed"
)

// RunResult is the outcome of one migration within a batch.
type RunResult struct {
	Migration  Migration
	Status     RunStatus
	DurationMs int64
	Error      string
}
