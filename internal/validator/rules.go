package validator

import (
	"regexp"
	"strings"

	"github.com/shepherrrd/migrasafe/internal/models"
	"github.com/shepherrrd/migrasafe/internal/sqltext"
)

type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	// SeverityBlocking errors stop a migration even when forced.
	SeverityBlocking
)

const (
	CodeDropWithoutIfExists       = "DROP_WITHOUT_IF_EXISTS"
	CodeDeleteWithoutWhere        = "DELETE_WITHOUT_WHERE"
	CodeUpdateWithoutWhere        = "UPDATE_WITHOUT_WHERE"
	CodeTruncateTable             = "TRUNCATE_TABLE"
	CodeDropDatabase              = "DROP_DATABASE"
	CodeDropColumnWithoutIfExists = "DROP_COLUMN_WITHOUT_IF_EXISTS"
	CodeNotNullWithoutDefault     = "NOT_NULL_WITHOUT_DEFAULT"
	CodeAlterColumnType           = "ALTER_COLUMN_TYPE"
	CodeIndexNotConcurrent        = "INDEX_WITHOUT_CONCURRENTLY"
	CodeDropIndexNotConcurrent    = "DROP_INDEX_WITHOUT_CONCURRENTLY"
	CodeMissingTransaction        = "MISSING_TRANSACTION"
	CodeMissingRollback           = "MISSING_ROLLBACK"
	CodeEmptyMigration            = "EMPTY_MIGRATION"
	CodeUnbalancedParentheses     = "UNBALANCED_PARENTHESES"
	CodeUnclosedString            = "UNCLOSED_STRING"
)

// Rule is a pattern check applied to every statement of a forward script.
// Match receives the scrubbed statement text.
type Rule struct {
	Code     string
	Message  string
	Severity Severity
	Risk     *models.LockRisk
	Match    func(clean string) bool
}

// script is what a scriptRule sees: the migration plus the scanner output for
// its forward script.
type script struct {
	migration  models.Migration
	clean      string
	unclosed   bool
	statements []sqltext.Statement
}

type scriptRule struct {
	Code     string
	Message  string
	Severity Severity
	Check    func(s script) bool
}

var rules = []Rule{
	{
		Code:     CodeDropDatabase,
		Message:  "DROP DATABASE is never allowed in a migration",
		Severity: SeverityBlocking,
		Match:    contains(`(?i)\bDROP\s+DATABASE\b`),
	},
	{
		Code:     CodeDropWithoutIfExists,
		Message:  "DROP TABLE without IF EXISTS",
		Severity: SeverityError,
		Match:    unqualified(`(?i)\bDROP\s+TABLE\s+(?P<q>IF\s+EXISTS\b)?`),
	},
	{
		Code:     CodeDeleteWithoutWhere,
		Message:  "DELETE FROM without a WHERE clause removes every row",
		Severity: SeverityError,
		Match:    containsWithout(`(?i)\bDELETE\s+FROM\b`, `(?i)\bWHERE\b`),
	},
	{
		Code:     CodeUpdateWithoutWhere,
		Message:  "UPDATE ... SET without a WHERE clause rewrites every row",
		Severity: SeverityError,
		Match:    updatesWithoutWhere,
	},
	{
		Code:     CodeTruncateTable,
		Message:  "TRUNCATE TABLE removes every row",
		Severity: SeverityError,
		Match:    contains(`(?i)\bTRUNCATE\s+(TABLE\s+)?[\w"]`),
	},
	{
		Code:     CodeDropColumnWithoutIfExists,
		Message:  "ALTER TABLE ... DROP COLUMN without IF EXISTS",
		Severity: SeverityError,
		Match:    all(contains(`(?i)\bALTER\s+TABLE\b`), dropsColumnWithoutIfExists),
	},
	{
		Code:     CodeNotNullWithoutDefault,
		Message:  "adding a NOT NULL column without a DEFAULT rewrites or locks the table",
		Severity: SeverityWarning,
		Risk:     risk(models.LockRiskHigh),
		Match:    all(contains(`(?i)\bALTER\s+TABLE\b`), addsNotNullColumnWithoutDefault),
	},
	{
		Code:     CodeAlterColumnType,
		Message:  "changing a column type may rewrite the table under an exclusive lock",
		Severity: SeverityWarning,
		Risk:     risk(models.LockRiskMedium),
		Match:    contains(`(?i)\bALTER\s+COLUMN\s+("[^"]+"|[\w$]+)\s+(SET\s+DATA\s+)?TYPE\b`),
	},
	{
		Code:     CodeIndexNotConcurrent,
		Message:  "CREATE INDEX without CONCURRENTLY blocks writes while it builds",
		Severity: SeverityWarning,
		Risk:     risk(models.LockRiskMedium),
		Match:    unqualified(`(?i)\bCREATE\s+(?:UNIQUE\s+)?INDEX\s+(?P<q>CONCURRENTLY\b)?`),
	},
	{
		Code:     CodeDropIndexNotConcurrent,
		Message:  "DROP INDEX without CONCURRENTLY takes an exclusive lock",
		Severity: SeverityWarning,
		Risk:     risk(models.LockRiskLow),
		Match:    unqualified(`(?i)\bDROP\s+INDEX\s+(?P<q>CONCURRENTLY\b)?`),
	},
}

var scriptRules = []scriptRule{
	{
		Code:     CodeEmptyMigration,
		Message:  "forward script is empty",
		Severity: SeverityError,
		Check: func(s script) bool {
			return strings.TrimSpace(s.migration.ForwardScript) == ""
		},
	},
	{
		Code:     CodeUnbalancedParentheses,
		Message:  "parentheses are not balanced",
		Severity: SeverityError,
		Check: func(s script) bool {
			return strings.Count(s.clean, "(") != strings.Count(s.clean, ")")
		},
	},
	{
		Code:     CodeUnclosedString,
		Message:  "single-quoted string is never closed",
		Severity: SeverityError,
		Check: func(s script) bool {
			return s.unclosed
		},
	},
	{
		Code:     CodeMissingTransaction,
		Message:  "multiple statements without BEGIN/COMMIT; a failure part-way leaves the schema half migrated",
		Severity: SeverityWarning,
		Check: func(s script) bool {
			return len(s.statements) > 1 && !sqltext.HasTransactionMarkers(s.migration.ForwardScript)
		},
	},
	{
		Code:     CodeMissingRollback,
		Message:  "no reverse script; this migration cannot be rolled back",
		Severity: SeverityWarning,
		Check: func(s script) bool {
			return !s.migration.HasReverse()
		},
	},
}

// Rules returns the per-statement rule table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// LockRules returns the rules that carry a lock-risk weight.
func LockRules() []Rule {
	var out []Rule
	for _, r := range rules {
		if r.Risk != nil {
			out = append(out, r)
		}
	}
	return out
}

func risk(r models.LockRisk) *models.LockRisk {
	return &r
}

func contains(pattern string) func(string) bool {
	re := regexp.MustCompile(pattern)
	return re.MatchString
}

func containsWithout(pattern, exception string) func(string) bool {
	re := regexp.MustCompile(pattern)
	ex := regexp.MustCompile(exception)
	return func(s string) bool {
		return re.MatchString(s) && !ex.MatchString(s)
	}
}

// unqualified matches when some occurrence of pattern leaves its named group
// "q" empty, e.g. a DROP TABLE that is not followed by IF EXISTS.
func unqualified(pattern string) func(string) bool {
	re := regexp.MustCompile(pattern)
	q := re.SubexpIndex("q")
	return func(s string) bool {
		for _, m := range re.FindAllStringSubmatchIndex(s, -1) {
			if m[2*q] < 0 {
				return true
			}
		}
		return false
	}
}

func all(matchers ...func(string) bool) func(string) bool {
	return func(s string) bool {
		for _, match := range matchers {
			if !match(s) {
				return false
			}
		}
		return true
	}
}

var (
	addClause      = regexp.MustCompile(`(?i)\bADD\s+(?:COLUMN\s+)?(?:IF\s+NOT\s+EXISTS\s+)?("[^"]+"|[\w$]+)`)
	notNull        = regexp.MustCompile(`(?i)\bNOT\s+NULL\b`)
	defaultKeyword = regexp.MustCompile(`(?i)\bDEFAULT\b`)
)

var nonColumnAdds = map[string]bool{
	"CONSTRAINT": true,
	"PRIMARY":    true,
	"FOREIGN":    true,
	"UNIQUE":     true,
	"CHECK":      true,
	"INDEX":      true,
	"KEY":        true,
	"EXCLUDE":    true,
}

var (
	updateSet = regexp.MustCompile(`(?i)\bUPDATE\s+(?:ONLY\s+)?[\w."]+(?:\s+(?:AS\s+)?("[^"]+"|\w+))?\s+SET\b`)
	where     = regexp.MustCompile(`(?i)\bWHERE\b`)
)

// updatesWithoutWhere matches an UPDATE ... SET with no WHERE at the top
// level after SET. A WHERE inside a subquery of the SET list does not count.
func updatesWithoutWhere(clean string) bool {
	for _, m := range updateSet.FindAllStringIndex(clean, -1) {
		if !topLevelMatch(clean, m[1], where) {
			return true
		}
	}
	return false
}

// topLevelMatch reports whether re matches s at or after start outside any
// parentheses opened after start.
func topLevelMatch(s string, start int, re *regexp.Regexp) bool {
	for _, m := range re.FindAllStringIndex(s[start:], -1) {
		if depthAt(s[start:], m[0]) == 0 {
			return true
		}
	}
	return false
}

func depthAt(s string, end int) int {
	depth := 0
	for i := 0; i < end; i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
	}
	return depth
}

var dropClause = regexp.MustCompile(`(?i)\bDROP\s+(?P<column>COLUMN\s+)?(?P<q>IF\s+EXISTS\s+)?(?P<target>"[^"]+"|[\w$]+)`)

// Targets of ALTER TABLE ... DROP that are not columns.
var nonColumnDrops = map[string]bool{
	"CONSTRAINT": true,
	"DEFAULT":    true,
	"NOT":        true,
	"EXPRESSION": true,
	"IDENTITY":   true,
	"INDEX":      true,
	"KEY":        true,
	"PRIMARY":    true,
	"FOREIGN":    true,
	"CHECK":      true,
	"PARTITION":  true,
}

// dropsColumnWithoutIfExists matches DROP COLUMN c and the short DROP c form
// of ALTER TABLE, unless IF EXISTS follows.
func dropsColumnWithoutIfExists(clean string) bool {
	column := dropClause.SubexpIndex("column")
	q := dropClause.SubexpIndex("q")
	target := dropClause.SubexpIndex("target")

	for _, m := range dropClause.FindAllStringSubmatchIndex(clean, -1) {
		if m[2*q] >= 0 {
			continue
		}
		if m[2*column] < 0 && nonColumnDrops[strings.ToUpper(clean[m[2*target]:m[2*target+1]])] {
			continue
		}
		return true
	}
	return false
}

// addsNotNullColumnWithoutDefault looks at each ADD clause of an ALTER TABLE
// up to the next top-level comma.
func addsNotNullColumnWithoutDefault(clean string) bool {
	for _, m := range addClause.FindAllStringSubmatchIndex(clean, -1) {
		target := strings.ToUpper(clean[m[2]:m[3]])
		if nonColumnAdds[target] {
			continue
		}
		clause := clauseFrom(clean, m[0])
		if notNull.MatchString(clause) && !defaultKeyword.MatchString(clause) {
			return true
		}
	}
	return false
}

func clauseFrom(s string, start int) string {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth <= 0 {
				return s[start:i]
			}
		}
	}
	return s[start:]
}
