package service

import (
	"context"
	"database/sql"
	"database/sql/driver"

	"clinic/backend/helper"
	"clinic/backend/internal/model"

	_ "modernc.org/sqlite"
)

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) QuoteIdent(name string) string { return quoteIdent(name) }

func (sqliteDialect) TablesQuery() string {
	return `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`
}

func (sqliteDialect) ColumnsQuery() string {
	return `
		SELECT name, type, "notnull" = 0, dflt_value, pk > 0
		FROM pragma_table_info(?)
		ORDER BY cid`
}

func (sqliteDialect) LikeOperator() string { return "LIKE" }

// PRAGMA foreign_keys is a no-op inside a transaction, so both toggles run on
// the bare connection.
func (sqliteDialect) DisableForeignKeys(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, `PRAGMA foreign_keys = OFF`)
	return err
}

func (sqliteDialect) EnableForeignKeys(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, `PRAGMA foreign_keys = ON`)
	return err
}

func (sqliteDialect) RenderSchema(schema string) string {
	return renderSchema(schema, map[string]string{
		"{{ID}}":        "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{BOOL}}":      "BOOLEAN",
		"{{FLOAT}}":     "REAL",
		"{{TIMESTAMP}}": "TIMESTAMP",
	})
}

func (sqliteDialect) GuardFlavor() helper.SQLFlavor { return helper.FlavorSQLite }

// QueryReadOnly switches the connection to query_only for the duration of the
// query. A connection that cannot be switched back is discarded.
func (sqliteDialect) QueryReadOnly(ctx context.Context, conn *sql.Conn, query string, args []any) ([]model.Record, error) {
	if _, err := conn.ExecContext(ctx, `PRAGMA query_only = ON`); err != nil {
		return nil, err
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), `PRAGMA query_only = OFF`); err != nil {
			conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}()

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}
