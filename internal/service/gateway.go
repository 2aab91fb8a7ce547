package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clinic/backend/helper"
	"clinic/backend/internal/model"

	"github.com/rs/zerolog"
)

// AdminIdentity names the account the bulk delete must preserve.
type AdminIdentity struct {
	Email string
	Role  string
}

// Gateway is the catalog-validated CRUD surface over any user table.
type Gateway struct {
	db    *DB
	admin AdminIdentity
	log   zerolog.Logger
	now   func() time.Time
}

var _ DBClient = (*Gateway)(nil)

func NewGateway(db *DB, admin AdminIdentity, log zerolog.Logger) *Gateway {
	return &Gateway{
		db:    db,
		admin: admin,
		log:   log.With().Str("component", "gateway").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (g *Gateway) ListTables(ctx context.Context) ([]string, error) {
	return listTables(ctx, g.db, g.db.Dialect)
}

func (g *Gateway) ListColumns(ctx context.Context, table string) (model.Columns, error) {
	if err := g.validateTable(ctx, table); err != nil {
		return nil, err
	}
	return listColumns(ctx, g.db, g.db.Dialect, table)
}

// validateTable checks the name against the live catalog. It must pass
// before a table name is interpolated into SQL.
func (g *Gateway) validateTable(ctx context.Context, table string) error {
	if !helper.IsValidIdentifier(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	tables, err := g.ListTables(ctx)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if t == table {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidTable, table)
}

// searchClause OR-matches term against every text column. It returns an
// empty clause when there is no term or no text column.
func (g *Gateway) searchClause(cols model.Columns, term string) (string, []any) {
	term = strings.TrimSpace(term)
	searchable := cols.Searchable()
	if term == "" || len(searchable) == 0 {
		return "", nil
	}
	conds := make([]string, len(searchable))
	args := make([]any, len(searchable))
	pattern := "%" + term + "%"
	for i, name := range searchable {
		conds[i] = fmt.Sprintf("%s %s ?", g.db.Dialect.QuoteIdent(name), g.db.Dialect.LikeOperator())
		args[i] = pattern
	}
	return " WHERE " + strings.Join(conds, " OR "), args
}

func (g *Gateway) GetTableData(ctx context.Context, req model.TableDataRequest) (*model.TableData, error) {
	req.Normalize()
	cols, err := g.ListColumns(ctx, req.Table)
	if err != nil {
		return nil, err
	}

	table := g.db.Dialect.QuoteIdent(req.Table)
	where, args := g.searchClause(cols, req.Search)

	var total int64
	countQuery := g.db.Rebind("SELECT COUNT(*) FROM " + table + where)
	if err := g.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, engineErr("count rows", err)
	}

	query := "SELECT * FROM " + table + where
	if order := cols.OrderColumn(); order != "" {
		query += " ORDER BY " + g.db.Dialect.QuoteIdent(order) + " DESC"
	}
	query += " LIMIT ? OFFSET ?"
	pageArgs := append(append([]any{}, args...), req.Limit, req.Offset())

	rows, err := g.db.QueryContext(ctx, g.db.Rebind(query), pageArgs...)
	if err != nil {
		return nil, engineErr("read rows", err)
	}
	defer rows.Close()
	records, err := scanRecords(rows)
	if err != nil {
		return nil, engineErr("read rows", err)
	}

	return &model.TableData{
		TableName: req.Table,
		Columns:   cols,
		Rows:      records,
		Pagination: model.Pagination{
			CurrentPage: req.Page,
			TotalPages:  helper.TotalPages(total, int64(req.Limit)),
			TotalRows:   total,
			Limit:       req.Limit,
		},
	}, nil
}

func (g *Gateway) InsertRecord(ctx context.Context, table string, data map[string]any) (*model.InsertResult, error) {
	cols, err := g.ListColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	writable := cols.Writable(model.IdentityColumn, model.CreatedAtColumn, model.UpdatedAtColumn)
	rec := bindValues(model.FilterRecord(data, writable))
	if len(rec) == 0 {
		return nil, ErrNoWritableFields
	}

	names := make([]string, len(rec))
	marks := make([]string, len(rec))
	for i, f := range rec {
		names[i] = g.db.Dialect.QuoteIdent(f.Name)
		marks[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		g.db.Dialect.QuoteIdent(table), strings.Join(names, ", "), strings.Join(marks, ", "))

	result := &model.InsertResult{InsertedData: rec}
	if cols.Has(model.IdentityColumn) {
		query += " RETURNING " + g.db.Dialect.QuoteIdent(model.IdentityColumn)
		if err := g.db.QueryRowContext(ctx, g.db.Rebind(query), rec.Values()...).Scan(&result.ID); err != nil {
			return nil, engineErr("insert", err)
		}
	} else if _, err := g.db.ExecContext(ctx, g.db.Rebind(query), rec.Values()...); err != nil {
		return nil, engineErr("insert", err)
	}

	g.log.Info().Str("table", table).Interface("id", result.ID).Msg("record inserted")
	return result, nil
}

func (g *Gateway) UpdateRecord(ctx context.Context, table string, id int64, data map[string]any) (*model.UpdateResult, error) {
	cols, err := g.ListColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	if !cols.Has(model.IdentityColumn) {
		return nil, fmt.Errorf("%w: table %q has no id column", ErrInvalidInput, table)
	}

	writable := cols.Writable(model.IdentityColumn, model.CreatedAtColumn, model.UpdatedAtColumn)
	rec := bindValues(model.FilterRecord(data, writable))
	if cols.Has(model.UpdatedAtColumn) {
		rec = rec.Set(model.UpdatedAtColumn, g.now())
	}
	if len(rec) == 0 {
		return nil, ErrNoWritableFields
	}

	sets := make([]string, len(rec))
	for i, f := range rec {
		sets[i] = g.db.Dialect.QuoteIdent(f.Name) + " = ?"
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		g.db.Dialect.QuoteIdent(table), strings.Join(sets, ", "), g.db.Dialect.QuoteIdent(model.IdentityColumn))

	res, err := g.db.ExecContext(ctx, g.db.Rebind(query), append(rec.Values(), id)...)
	if err != nil {
		return nil, engineErr("update", err)
	}
	changes, err := res.RowsAffected()
	if err != nil {
		return nil, engineErr("update", err)
	}
	if changes == 0 {
		return nil, ErrNotFound
	}
	return &model.UpdateResult{ID: id, UpdatedData: rec, Changes: changes}, nil
}

func (g *Gateway) DeleteRecord(ctx context.Context, table string, id int64) (*model.DeleteResult, error) {
	if err := g.validateTable(ctx, table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?",
		g.db.Dialect.QuoteIdent(table), g.db.Dialect.QuoteIdent(model.IdentityColumn))
	res, err := g.db.ExecContext(ctx, g.db.Rebind(query), id)
	if err != nil {
		return nil, engineErr("delete", err)
	}
	changes, err := res.RowsAffected()
	if err != nil {
		return nil, engineErr("delete", err)
	}
	if changes == 0 {
		return nil, ErrNotFound
	}
	g.log.Info().Str("table", table).Int64("id", id).Msg("record deleted")
	return &model.DeleteResult{ID: id, Changes: changes}, nil
}
