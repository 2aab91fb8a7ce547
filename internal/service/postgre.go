package service

import (
	"context"
	"database/sql"

	"clinic/backend/helper"
	"clinic/backend/internal/model"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

// postgresDialect serves both the lib/pq ("postgres") and the pgx stdlib
// ("pgx") drivers.
type postgresDialect struct {
	driver string
}

func (d postgresDialect) Name() string { return d.driver }

func (postgresDialect) Rebind(query string) string { return rebindDollar(query) }

func (postgresDialect) QuoteIdent(name string) string { return quoteIdent(name) }

func (postgresDialect) TablesQuery() string {
	return `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`
}

func (postgresDialect) ColumnsQuery() string {
	return `
		SELECT c.column_name, c.data_type, c.is_nullable = 'YES', c.column_default,
			EXISTS (
				SELECT 1
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage k
					ON k.constraint_name = tc.constraint_name
					AND k.table_schema = tc.table_schema
					AND k.table_name = tc.table_name
				WHERE tc.constraint_type = 'PRIMARY KEY'
					AND tc.table_schema = c.table_schema
					AND tc.table_name = c.table_name
					AND k.column_name = c.column_name
			)
		FROM information_schema.columns c
		WHERE c.table_schema = current_schema() AND c.table_name = $1
		ORDER BY c.ordinal_position`
}

func (postgresDialect) LikeOperator() string { return "ILIKE" }

// Replica mode skips foreign key triggers for the session. It needs a
// superuser or a role allowed to set session_replication_role.
func (postgresDialect) DisableForeignKeys(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, `SET session_replication_role = replica`)
	return err
}

func (postgresDialect) EnableForeignKeys(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, `SET session_replication_role = DEFAULT`)
	return err
}

func (postgresDialect) RenderSchema(schema string) string {
	return renderSchema(schema, map[string]string{
		"{{ID}}":        "BIGSERIAL PRIMARY KEY",
		"{{BOOL}}":      "BOOLEAN",
		"{{FLOAT}}":     "DOUBLE PRECISION",
		"{{TIMESTAMP}}": "TIMESTAMP",
	})
}

func (postgresDialect) GuardFlavor() helper.SQLFlavor { return helper.FlavorPostgres }

func (postgresDialect) QueryReadOnly(ctx context.Context, conn *sql.Conn, query string, args []any) ([]model.Record, error) {
	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}
