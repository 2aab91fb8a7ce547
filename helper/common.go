package helper

import (
	"regexp"
	"strconv"
	"strings"
)

var IdentifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IsValidIdentifier reports whether s can be used as a bare SQL identifier.
// Catalog membership is still required before interpolating it.
func IsValidIdentifier(s string) bool {
	return IdentifierRegex.MatchString(s)
}

// ParseIntDefault parses s as a base-10 integer. Empty, malformed or values
// below min yield def.
func ParseIntDefault(s string, def, min int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < min {
		return def
	}
	return n
}

// TotalPages returns ceil(total/limit), zero when there are no rows.
func TotalPages(total, limit int64) int64 {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// IsTextType reports whether a declared column type holds character data.
func IsTextType(declared string) bool {
	t := strings.ToUpper(declared)
	return strings.Contains(t, "TEXT") || strings.Contains(t, "CHAR") || strings.Contains(t, "CLOB")
}
