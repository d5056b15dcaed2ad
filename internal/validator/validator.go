package validator

import (
	"github.com/shepherrrd/migrasafe/internal/models"
	"github.com/shepherrrd/migrasafe/internal/sqltext"
)

// Validate runs every rule against the forward script of m. Any error makes
// the result invalid; warnings never do.
func Validate(m models.Migration) models.ValidationResult {
	clean, unclosed := sqltext.Scrub(m.ForwardScript)
	s := script{
		migration:  m,
		clean:      clean,
		unclosed:   unclosed,
		statements: sqltext.Statements(m.ForwardScript),
	}

	var result models.ValidationResult
	for _, stmt := range s.statements {
		for _, rule := range rules {
			if rule.Match(stmt.Clean) {
				addIssue(&result, rule.Code, rule.Message, stmt.Line, rule.Severity, rule.Risk)
			}
		}
	}
	for _, rule := range scriptRules {
		if rule.Check(s) {
			addIssue(&result, rule.Code, rule.Message, 0, rule.Severity, nil)
		}
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

func addIssue(result *models.ValidationResult, code, message string, line int, severity Severity, risk *models.LockRisk) {
	issue := models.Issue{
		Code:     code,
		Message:  message,
		Line:     line,
		Fatal:    severity >= SeverityError,
		Blocking: severity == SeverityBlocking,
		Risk:     risk,
	}
	if issue.Fatal {
		result.Errors = append(result.Errors, issue)
		return
	}
	result.Warnings = append(result.Warnings, issue)
}
