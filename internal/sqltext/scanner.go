// Package sqltext does the light lexical work shared by the validator, the risk
// estimator and the executor: blanking comments and literals, splitting a
// script into statements and pulling identifiers out of it. It is not a SQL
// parser and does not try to be one.
package sqltext

import (
	"regexp"
	"strings"
)

// Statement is one semicolon-delimited statement of a script.
type Statement struct {
	// Text is the statement as written, trimmed, without the trailing semicolon.
	Text string
	// Clean is Text with comments and literal bodies blanked out.
	Clean string
	// Line is the 1-based line the statement starts on.
	Line int
}

// Scrub returns script with every comment and every string literal body
// replaced by spaces. The result has the same length as the input and keeps
// all newlines, so offsets and line numbers still line up. Quote characters
// of single-quoted strings are kept. Backslash escapes are honored inside
// E'...' strings. unclosed reports a single-quoted string still open at the
// end of input.
func Scrub(script string) (clean string, unclosed bool) {
	out := []byte(script)
	n := len(out)
	i := 0
	for i < n {
		c := out[i]
		switch {
		case c == '-' && i+1 < n && out[i+1] == '-':
			for i < n && out[i] != '\n' {
				out[i] = ' '
				i++
			}
		case c == '/' && i+1 < n && out[i+1] == '*':
			end := strings.Index(script[i+2:], "*/")
			stop := n
			if end >= 0 {
				stop = i + 2 + end + 2
			}
			blank(out, i, stop)
			i = stop
		case c == '\'':
			escapes := escapeString(out, i)
			i++
			closed := false
			for i < n {
				if escapes && out[i] == '\\' && i+1 < n {
					blank(out, i, i+2)
					i += 2
					continue
				}
				if out[i] == '\'' {
					if i+1 < n && out[i+1] == '\'' {
						out[i], out[i+1] = ' ', ' '
						i += 2
						continue
					}
					closed = true
					i++
					break
				}
				if out[i] != '\n' {
					out[i] = ' '
				}
				i++
			}
			if !closed {
				unclosed = true
			}
		case c == '"':
			end := strings.IndexByte(script[i+1:], '"')
			if end < 0 {
				i = n
				break
			}
			i += end + 2
		case c == '$' && (i == 0 || !isIdentByte(out[i-1])):
			tag, ok := dollarTag(script[i:])
			if !ok {
				i++
				break
			}
			body := strings.Index(script[i+len(tag):], tag)
			if body < 0 {
				i++
				break
			}
			start := i + len(tag)
			stop := start + body
			blank(out, start, stop)
			i = stop + len(tag)
		default:
			i++
		}
	}
	return string(out), unclosed
}

// escapeString reports whether the quote at out[i] opens a PostgreSQL E'...'
// string, where a backslash escapes the next character.
func escapeString(out []byte, i int) bool {
	if i == 0 || out[i-1] != 'E' && out[i-1] != 'e' {
		return false
	}
	return i == 1 || !isIdentByte(out[i-2])
}

// Statements splits script on semicolons that are not inside comments or
// literals. Statements that are empty once comments are removed are dropped.
func Statements(script string) []Statement {
	clean, _ := Scrub(script)

	var stmts []Statement
	start := 0
	for i := 0; i <= len(clean); i++ {
		if i < len(clean) && clean[i] != ';' {
			continue
		}
		if stmt, ok := newStatement(script, clean, start, i); ok {
			stmts = append(stmts, stmt)
		}
		start = i + 1
	}
	return stmts
}

// CountStatements returns len(Statements(script)).
func CountStatements(script string) int {
	return len(Statements(script))
}

var transactionMarker = regexp.MustCompile(`(?i)^(BEGIN|START\s+TRANSACTION|COMMIT|END|ROLLBACK)\b`)

// HasTransactionMarkers reports whether the script manages its own transaction
// with BEGIN/START TRANSACTION/COMMIT statements.
func HasTransactionMarkers(script string) bool {
	for _, stmt := range Statements(script) {
		if transactionMarker.MatchString(stmt.Clean) {
			return true
		}
	}
	return false
}

var identifier = regexp.MustCompile(`"([^"]+)"|([A-Za-z_][A-Za-z0-9_$]*)`)

// Identifiers returns every identifier-looking token of the script outside
// comments and literals, lowercased, in order of appearance. Quoted
// identifiers are returned without their quotes.
func Identifiers(script string) []string {
	clean, _ := Scrub(script)

	var idents []string
	for _, m := range identifier.FindAllStringSubmatch(clean, -1) {
		if m[1] != "" {
			idents = append(idents, strings.ToLower(m[1]))
			continue
		}
		idents = append(idents, strings.ToLower(m[2]))
	}
	return idents
}

func newStatement(script, clean string, start, end int) (Statement, bool) {
	segment := clean[start:end]
	trimmed := strings.TrimSpace(segment)
	if trimmed == "" {
		return Statement{}, false
	}

	lead := start + strings.Index(segment, trimmed[:1])
	tail := lead + len(trimmed)
	return Statement{
		Text:  strings.TrimSpace(script[lead:tail]),
		Clean: trimmed,
		Line:  strings.Count(clean[:lead], "\n") + 1,
	}, true
}

// dollarTag returns the opening $tag$ delimiter at the start of s.
func dollarTag(s string) (string, bool) {
	for j := 1; j < len(s); j++ {
		c := s[j]
		if c == '$' {
			return s[:j+1], true
		}
		if j == 1 && c >= '0' && c <= '9' {
			return "", false
		}
		if !isIdentByte(c) {
			return "", false
		}
	}
	return "", false
}

func blank(out []byte, from, to int) {
	for k := from; k < to && k < len(out); k++ {
		if out[k] != '\n' {
			out[k] = ' '
		}
	}
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
