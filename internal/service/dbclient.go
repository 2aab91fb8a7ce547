package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"clinic/backend/internal/model"
)

// DBClient is the dynamic table gateway consumed by the database handlers.
type DBClient interface {
	ListTables(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, table string) (model.Columns, error)
	GetTableData(ctx context.Context, req model.TableDataRequest) (*model.TableData, error)
	InsertRecord(ctx context.Context, table string, data map[string]any) (*model.InsertResult, error)
	UpdateRecord(ctx context.Context, table string, id int64, data map[string]any) (*model.UpdateResult, error)
	DeleteRecord(ctx context.Context, table string, id int64) (*model.DeleteResult, error)
	ExecuteQuery(ctx context.Context, req model.QueryRequest) (*model.QueryResult, error)
	CleanupData(ctx context.Context) (*model.CleanupResult, error)
	Stats(ctx context.Context) (*model.DatabaseStats, error)
	Search(ctx context.Context, term string, limit int) ([]model.SearchHit, error)
}

// DB is a connection pool bound to the dialect of its driver.
type DB struct {
	*sql.DB
	Dialect Dialect
}

type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Open connects and pings the database. SQLite is limited to a single
// connection so that writers never contend and in-memory databases survive.
func Open(ctx context.Context, driver, dsn string, pool PoolConfig) (*DB, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite" {
		pool.MaxOpenConns, pool.MaxIdleConns = 1, 1
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if driver != "sqlite" {
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &DB{DB: db, Dialect: dialect}, nil
}

func (d *DB) Rebind(query string) string { return d.Dialect.Rebind(query) }

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a transaction, committing when fn returns nil.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return engineErr("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return engineErr("commit", err)
	}
	return nil
}

// listTables reads the catalog through q, which may be a pinned connection
// or transaction.
func listTables(ctx context.Context, q queryer, d Dialect) ([]string, error) {
	rows, err := q.QueryContext(ctx, d.TablesQuery())
	if err != nil {
		return nil, engineErr("list tables", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, engineErr("list tables", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, engineErr("list tables", err)
	}
	return tables, nil
}

func listColumns(ctx context.Context, q queryer, d Dialect, table string) (model.Columns, error) {
	rows, err := q.QueryContext(ctx, d.ColumnsQuery(), table)
	if err != nil {
		return nil, engineErr("list columns", err)
	}
	defer rows.Close()

	var columns model.Columns
	for rows.Next() {
		var (
			col model.Column
			def sql.NullString
		)
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &def, &col.PrimaryKey); err != nil {
			return nil, engineErr("list columns", err)
		}
		if def.Valid {
			col.Default = &def.String
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, engineErr("list columns", err)
	}
	return columns, nil
}
