package validator

import (
	"testing"

	"github.com/shepherrrd/migrasafe/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dropUsers = "DROP TABLE IF EXISTS users;"

func migration(forward, reverse string) models.Migration {
	return models.Migration{
		SequenceNumber: 1,
		Name:           "test",
		Filename:       "001_test.sql",
		ForwardScript:  forward,
		ReverseScript:  reverse,
	}
}

func codes(issues []models.Issue) []string {
	var out []string
	for _, issue := range issues {
		out = append(out, issue.Code)
	}
	return out
}

func TestValidate_Clean(t *testing.T) {
	result := Validate(migration("CREATE TABLE users (id INT PRIMARY KEY);", dropUsers))

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidate_StatementRules(t *testing.T) {
	tests := []struct {
		name        string
		forward     string
		wantError   string
		wantWarning string
	}{
		{name: "drop table", forward: "DROP TABLE users;", wantError: CodeDropWithoutIfExists},
		{name: "delete without where", forward: "DELETE FROM users;", wantError: CodeDeleteWithoutWhere},
		{name: "update without where", forward: "UPDATE users SET active = true;", wantError: CodeUpdateWithoutWhere},
		{name: "update only", forward: "UPDATE ONLY users SET active = true;", wantError: CodeUpdateWithoutWhere},
		{name: "update with alias", forward: "UPDATE users AS u SET active = true;", wantError: CodeUpdateWithoutWhere},
		{name: "update with bare alias", forward: "UPDATE users u SET active = true;", wantError: CodeUpdateWithoutWhere},
		{name: "update where only in subquery", forward: "UPDATE users SET plan = (SELECT p FROM plans WHERE plans.id = 1);", wantError: CodeUpdateWithoutWhere},
		{name: "truncate", forward: "TRUNCATE TABLE sessions;", wantError: CodeTruncateTable},
		{name: "truncate short form", forward: "truncate sessions;", wantError: CodeTruncateTable},
		{name: "drop database", forward: "DROP DATABASE production;", wantError: CodeDropDatabase},
		{name: "drop column", forward: "ALTER TABLE users DROP COLUMN age;", wantError: CodeDropColumnWithoutIfExists},
		{name: "drop column short form", forward: "ALTER TABLE users DROP age;", wantError: CodeDropColumnWithoutIfExists},
		{name: "not null without default", forward: "ALTER TABLE users ADD COLUMN age INT NOT NULL;", wantWarning: CodeNotNullWithoutDefault},
		{name: "column type change", forward: "ALTER TABLE users ALTER COLUMN age TYPE BIGINT;", wantWarning: CodeAlterColumnType},
		{name: "column type change long form", forward: "ALTER TABLE users ALTER COLUMN age SET DATA TYPE BIGINT;", wantWarning: CodeAlterColumnType},
		{name: "create index", forward: "CREATE INDEX idx_users_email ON users (email);", wantWarning: CodeIndexNotConcurrent},
		{name: "create unique index", forward: "CREATE UNIQUE INDEX idx_users_email ON users (email);", wantWarning: CodeIndexNotConcurrent},
		{name: "drop index", forward: "DROP INDEX idx_users_email;", wantWarning: CodeDropIndexNotConcurrent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(migration(tt.forward, "SELECT 1;"))

			if tt.wantError != "" {
				assert.False(t, result.IsValid)
				assert.Contains(t, codes(result.Errors), tt.wantError)
			}
			if tt.wantWarning != "" {
				assert.True(t, result.IsValid)
				assert.Contains(t, codes(result.Warnings), tt.wantWarning)
			}
		})
	}
}

func TestValidate_SafeVariants(t *testing.T) {
	safe := []string{
		"DROP TABLE IF EXISTS users;",
		"DELETE FROM sessions WHERE expires_at < now();",
		"UPDATE users SET active = true WHERE id = 1;",
		"UPDATE users AS u SET active = true WHERE u.id = 1;",
		"UPDATE users SET plan = 'pro' WHERE id IN (SELECT user_id FROM upgrades WHERE paid);",
		"INSERT INTO users (id, name) VALUES (1, 'a') ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name;",
		"ALTER TABLE users DROP COLUMN IF EXISTS age;",
		"ALTER TABLE users DROP IF EXISTS age;",
		"ALTER TABLE users DROP CONSTRAINT users_email_key;",
		"ALTER TABLE users ALTER COLUMN age DROP DEFAULT;",
		"ALTER TABLE users ALTER COLUMN age DROP NOT NULL;",
		`INSERT INTO notes (body) VALUES (E'it\'s (not) closed');`,
		"ALTER TABLE users ADD COLUMN age INT NOT NULL DEFAULT 0;",
		"ALTER TABLE users ADD CONSTRAINT users_email_key UNIQUE (email);",
		"CREATE INDEX CONCURRENTLY idx_users_email ON users (email);",
		"DROP INDEX CONCURRENTLY idx_users_email;",
	}

	for _, forward := range safe {
		t.Run(forward, func(t *testing.T) {
			result := Validate(migration(forward, "SELECT 1;"))
			assert.True(t, result.IsValid)
			assert.Empty(t, result.Errors)
			assert.Empty(t, result.Warnings)
		})
	}
}

func TestValidate_DropTableIfExistsNeverFlagged(t *testing.T) {
	scripts := []string{
		"DROP TABLE IF EXISTS users;",
		"drop table if exists users cascade;",
		"DROP TABLE IF EXISTS a;\nDROP TABLE IF EXISTS b;",
	}
	for _, forward := range scripts {
		result := Validate(migration(forward, ""))
		assert.NotContains(t, codes(result.Errors), CodeDropWithoutIfExists, forward)
	}
}

func TestValidate_IgnoresCommentsAndLiterals(t *testing.T) {
	forward := "-- DROP TABLE users;\n" +
		"/* DELETE FROM users; */\n" +
		"INSERT INTO audit (note) VALUES ('DROP DATABASE prod; (');"

	result := Validate(migration(forward, "DELETE FROM audit WHERE note = 'x';"))

	assert.True(t, result.IsValid, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
}

func TestValidate_LineNumbers(t *testing.T) {
	forward := "CREATE TABLE a (id int);\n\nDROP TABLE b;"

	result := Validate(migration(forward, dropUsers))
	require.Len(t, result.Errors, 1)
	assert.Equal(t, CodeDropWithoutIfExists, result.Errors[0].Code)
	assert.Equal(t, 3, result.Errors[0].Line)
}

func TestValidate_DropDatabaseIsBlocking(t *testing.T) {
	result := Validate(migration("DROP DATABASE production;", ""))

	blocking := result.Blocking()
	require.Len(t, blocking, 1)
	assert.Equal(t, CodeDropDatabase, blocking[0].Code)
	assert.True(t, blocking[0].Fatal)

	for _, issue := range result.Errors {
		if issue.Code != CodeDropDatabase {
			assert.False(t, issue.Blocking, issue.Code)
		}
	}
}

func TestValidate_LockRulesCarryRisk(t *testing.T) {
	result := Validate(migration("ALTER TABLE users ADD COLUMN age INT NOT NULL;", "SELECT 1;"))

	require.Len(t, result.Warnings, 1)
	require.NotNil(t, result.Warnings[0].Risk)
	assert.Equal(t, models.LockRiskHigh, *result.Warnings[0].Risk)
}

func TestValidate_ScriptRules(t *testing.T) {
	tests := []struct {
		name      string
		forward   string
		reverse   string
		wantCodes []string
		wantValid bool
	}{
		{
			name:      "empty",
			forward:   "  \n ",
			reverse:   "SELECT 1;",
			wantCodes: []string{CodeEmptyMigration},
		},
		{
			name:      "unbalanced parentheses",
			forward:   "CREATE TABLE a (id int;",
			reverse:   "SELECT 1;",
			wantCodes: []string{CodeUnbalancedParentheses},
		},
		{
			name:      "unclosed string",
			forward:   "INSERT INTO a SELECT 'x;",
			reverse:   "SELECT 1;",
			wantCodes: []string{CodeUnclosedString},
		},
		{
			name:      "missing transaction",
			forward:   "CREATE TABLE a (id int);\nCREATE TABLE b (id int);",
			reverse:   "SELECT 1;",
			wantCodes: []string{CodeMissingTransaction},
			wantValid: true,
		},
		{
			name:      "explicit transaction",
			forward:   "BEGIN;\nCREATE TABLE a (id int);\nCREATE TABLE b (id int);\nCOMMIT;",
			reverse:   "SELECT 1;",
			wantValid: true,
		},
		{
			name:      "missing rollback",
			forward:   "CREATE TABLE a (id int);",
			wantCodes: []string{CodeMissingRollback},
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(migration(tt.forward, tt.reverse))

			assert.Equal(t, tt.wantValid, result.IsValid)
			got := append(codes(result.Errors), codes(result.Warnings)...)
			assert.ElementsMatch(t, tt.wantCodes, got)
			for _, issue := range append(result.Errors, result.Warnings...) {
				assert.Zero(t, issue.Line, issue.Code)
			}
		})
	}
}

func TestLockRules(t *testing.T) {
	lockRules := LockRules()
	require.Len(t, lockRules, 4)
	for _, r := range lockRules {
		assert.NotNil(t, r.Risk, r.Code)
		assert.Equal(t, SeverityWarning, r.Severity, r.Code)
	}
	assert.Len(t, Rules(), 10)
}
