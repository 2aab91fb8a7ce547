package helper

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrNotSelect          = errors.New("only SELECT statements are allowed")
	ErrMultipleStatements = errors.New("multiple statements are not allowed")
	ErrUnterminated       = errors.New("unterminated quote or comment")
)

// SQLFlavor selects the quoting rules of the engine that runs the query.
type SQLFlavor int

const (
	// FlavorSQLite: '' strings, "", `` and [] identifiers, flat /* */ comments.
	FlavorSQLite SQLFlavor = iota
	// FlavorPostgres: '' and E'' strings, "" identifiers, $tag$ dollar
	// quotes, nested /* */ comments.
	FlavorPostgres
)

// CheckReadOnly accepts a single SELECT statement. The statement must start with
// the SELECT keyword (leading comments are rejected) and may end with one ';'.
// Quotes and comments are skipped while looking for further statements.
func CheckReadOnly(query string, flavor SQLFlavor) error {
	q := strings.TrimSpace(query)
	if !hasKeywordPrefix(q, "SELECT") {
		return ErrNotSelect
	}

	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case c == '\'':
			escapes := flavor == FlavorPostgres && i > 0 && (q[i-1] == 'E' || q[i-1] == 'e') && (i < 2 || !isIdentByte(q[i-2]))
			end, ok := skipQuoted(q, i, '\'', escapes)
			if !ok {
				return ErrUnterminated
			}
			i = end
		case c == '"':
			end, ok := skipQuoted(q, i, '"', false)
			if !ok {
				return ErrUnterminated
			}
			i = end
		case c == '`' && flavor == FlavorSQLite:
			end, ok := skipQuoted(q, i, '`', false)
			if !ok {
				return ErrUnterminated
			}
			i = end
		case c == '[' && flavor == FlavorSQLite:
			end := strings.IndexByte(q[i+1:], ']')
			if end < 0 {
				return ErrUnterminated
			}
			i += end + 1
		case c == '$' && flavor == FlavorPostgres && (i == 0 || !isIdentByte(q[i-1])):
			tag, ok := dollarTag(q[i:])
			if !ok {
				continue
			}
			end := strings.Index(q[i+len(tag):], tag)
			if end < 0 {
				return ErrUnterminated
			}
			i += len(tag) + end + len(tag) - 1
		case c == '-' && i+1 < len(q) && q[i+1] == '-':
			end := strings.IndexByte(q[i:], '\n')
			if end < 0 {
				return nil
			}
			i += end
		case c == '/' && i+1 < len(q) && q[i+1] == '*':
			end, ok := skipBlockComment(q, i, flavor == FlavorPostgres)
			if !ok {
				return ErrUnterminated
			}
			i = end
		case c == ';':
			if !onlyTrivia(q[i+1:], flavor) {
				return ErrMultipleStatements
			}
			return nil
		}
	}
	return nil
}

// IsReadOnlyStatement is the boolean form of CheckReadOnly.
func IsReadOnlyStatement(query string, flavor SQLFlavor) bool {
	return CheckReadOnly(query, flavor) == nil
}

// skipQuoted returns the index of the quote closing the one at start. A
// doubled quote stays inside the literal, and so does a backslash-escaped one
// when escapes is set.
func skipQuoted(q string, start int, quote byte, escapes bool) (int, bool) {
	for i := start + 1; i < len(q); i++ {
		switch q[i] {
		case '\\':
			if escapes {
				i++
			}
		case quote:
			if i+1 < len(q) && q[i+1] == quote {
				i++
				continue
			}
			return i, true
		}
	}
	return 0, false
}

// skipBlockComment returns the index of the final '/' of the comment opened
// at start.
func skipBlockComment(q string, start int, nested bool) (int, bool) {
	depth := 1
	for i := start + 2; i+1 < len(q); i++ {
		switch {
		case q[i] == '*' && q[i+1] == '/':
			depth--
			i++
			if depth == 0 {
				return i, true
			}
		case nested && q[i] == '/' && q[i+1] == '*':
			depth++
			i++
		}
	}
	return 0, false
}

// dollarTag returns the opening "$tag$" at the start of s. Tags follow
// identifier rules, so "$1" is a parameter and not a tag.
func dollarTag(s string) (string, bool) {
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == '$' {
			return s[:i+1], true
		}
		if !isIdentByte(c) || (i == 1 && c >= '0' && c <= '9') {
			return "", false
		}
	}
	return "", false
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func hasKeywordPrefix(s, keyword string) bool {
	if len(s) < len(keyword) || !strings.EqualFold(s[:len(keyword)], keyword) {
		return false
	}
	if len(s) == len(keyword) {
		return true
	}
	next := rune(s[len(keyword)])
	return !(unicode.IsLetter(next) || unicode.IsDigit(next) || next == '_')
}

// onlyTrivia reports whether the rest of a statement holds nothing but
// whitespace, comments and further semicolons.
func onlyTrivia(s string, flavor SQLFlavor) bool {
	for {
		s = strings.TrimLeft(s, " \t\r\n;")
		switch {
		case s == "":
			return true
		case strings.HasPrefix(s, "--"):
			end := strings.IndexByte(s, '\n')
			if end < 0 {
				return true
			}
			s = s[end:]
		case strings.HasPrefix(s, "/*"):
			end, ok := skipBlockComment(s, 0, flavor == FlavorPostgres)
			if !ok {
				return false
			}
			s = s[end+1:]
		default:
			return false
		}
	}
}
