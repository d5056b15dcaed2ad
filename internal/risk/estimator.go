package risk

import (
	"strings"

	"github.com/shepherrrd/migrasafe/internal/models"
	"github.com/shepherrrd/migrasafe/internal/sqltext"
	"github.com/shepherrrd/migrasafe/internal/validator"
)

const maxLevel = 4

// DefaultHotTables are tables that are large or busy in most deployments.
var DefaultHotTables = []string{"users", "profiles", "accounts", "orders", "sessions", "events"}

// EstimateLockRisk scores sql by the worst lock rule it trips, then bumps the
// score one level if it touches any of hotTables. Rules never add up; only the
// maximum counts.
func EstimateLockRisk(sql string, hotTables []string) models.LockRisk {
	level := 0
	lockRules := validator.LockRules()
	for _, stmt := range sqltext.Statements(sql) {
		for _, rule := range lockRules {
			if rule.Match(stmt.Clean) && rule.Risk.Weight() > level {
				level = rule.Risk.Weight()
			}
		}
	}

	if touchesAny(sql, hotTables) {
		level++
		if level > maxLevel {
			level = maxLevel
		}
	}

	return models.LockRiskFromLevel(level)
}

// HotTablesIn returns the hot tables referenced by sql, in the order given.
func HotTablesIn(sql string, hotTables []string) []string {
	idents := identifierSet(sql)

	var found []string
	for _, table := range hotTables {
		if idents[strings.ToLower(table)] {
			found = append(found, table)
		}
	}
	return found
}

func touchesAny(sql string, hotTables []string) bool {
	if len(hotTables) == 0 {
		return false
	}
	return len(HotTablesIn(sql, hotTables)) > 0
}

func identifierSet(sql string) map[string]bool {
	set := make(map[string]bool)
	for _, ident := range sqltext.Identifiers(sql) {
		set[ident] = true
	}
	return set
}
