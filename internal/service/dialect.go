package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"clinic/backend/helper"
	"clinic/backend/internal/model"
)

// Dialect hides the SQL differences between the supported engines. Queries
// inside this package are written with '?' placeholders and rebound.
type Dialect interface {
	Name() string
	Rebind(query string) string
	QuoteIdent(name string) string
	// TablesQuery lists user tables, one name per row, without arguments.
	TablesQuery() string
	// ColumnsQuery takes the table name as its only argument and yields
	// name, type, nullable, default and primary-key flag per row.
	ColumnsQuery() string
	LikeOperator() string
	DisableForeignKeys(ctx context.Context, conn *sql.Conn) error
	EnableForeignKeys(ctx context.Context, conn *sql.Conn) error
	RenderSchema(schema string) string
	// GuardFlavor names the quoting rules the read-only guard must follow.
	GuardFlavor() helper.SQLFlavor
	// QueryReadOnly runs query on conn with the engine refusing writes.
	QueryReadOnly(ctx context.Context, conn *sql.Conn, query string, args []any) ([]model.Record, error)
}

func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return postgresDialect{driver: driver}, nil
	case "sqlite":
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// rebindDollar rewrites '?' placeholders as $1..$n, leaving quoted text and
// comments untouched.
func rebindDollar(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'' || c == '"':
			end := strings.IndexByte(query[i+1:], c)
			if end < 0 {
				b.WriteString(query[i:])
				return b.String()
			}
			b.WriteString(query[i : i+end+2])
			i += end + 1
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				b.WriteString(query[i:])
				return b.String()
			}
			b.WriteString(query[i : i+end])
			i += end - 1
		case c == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func renderSchema(schema string, tokens map[string]string) string {
	pairs := make([]string, 0, len(tokens)*2)
	for k, v := range tokens {
		pairs = append(pairs, k, v)
	}
	return strings.NewReplacer(pairs...).Replace(schema)
}
