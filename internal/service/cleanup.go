package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"clinic/backend/internal/model"
)

type cleanupStep struct {
	table string
	// keep is the column compared against the admin id; empty deletes all rows.
	keep string
}

// cleanupOrder deletes children before parents.
var cleanupOrder = []cleanupStep{
	{table: "appointments"},
	{table: "patients"},
	{table: "doctors", keep: "user_id"},
	{table: "financial_transactions"},
	{table: "payments"},
	{table: "transactions"},
	{table: "invoices"},
	{table: "medical_reports"},
	{table: "ai_analysis_reports"},
	{table: "ai_analyses"},
	{table: "treatment_plans"},
	{table: "treatment_sessions"},
	{table: "notifications"},
	{table: "email_notifications"},
	{table: "activity_logs"},
	{table: "users", keep: "id"},
}

// CleanupData wipes clinical, financial and notification data while keeping
// the configured admin account. Everything runs in one transaction on a
// pinned connection with foreign key enforcement relaxed; enforcement is
// restored on every exit path.
func (g *Gateway) CleanupData(ctx context.Context) (res *model.CleanupResult, err error) {
	conn, err := g.db.Conn(ctx)
	if err != nil {
		return nil, engineErr("acquire connection", err)
	}
	defer conn.Close()

	if err := g.db.Dialect.DisableForeignKeys(ctx, conn); err != nil {
		return nil, engineErr("disable foreign keys", err)
	}
	defer func() {
		if rerr := g.db.Dialect.EnableForeignKeys(context.WithoutCancel(ctx), conn); rerr != nil {
			g.log.Error().Err(rerr).Msg("failed to restore foreign keys, discarding connection")
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			res = nil
			err = errors.Join(err, engineErr("restore foreign keys", rerr))
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, engineErr("begin transaction", err)
	}
	defer tx.Rollback()

	admin, err := g.preservedAccount(ctx, tx)
	if err != nil {
		return nil, err
	}

	tables, err := listTables(ctx, tx, g.db.Dialect)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(tables))
	for _, t := range tables {
		present[t] = true
	}

	deleted := model.TableCounts{}
	for _, step := range cleanupOrder {
		if !present[step.table] {
			g.log.Warn().Str("table", step.table).Msg("cleanup table missing, skipped")
			continue
		}
		query := "DELETE FROM " + g.db.Dialect.QuoteIdent(step.table)
		var args []any
		if step.keep != "" {
			query += " WHERE " + g.db.Dialect.QuoteIdent(step.keep) + " IS NULL OR " +
				g.db.Dialect.QuoteIdent(step.keep) + " <> ?"
			args = append(args, admin.ID)
		}
		r, err := tx.ExecContext(ctx, g.db.Rebind(query), args...)
		if err != nil {
			return nil, engineErr("delete "+step.table, err)
		}
		n, err := r.RowsAffected()
		if err != nil {
			return nil, engineErr("delete "+step.table, err)
		}
		deleted = append(deleted, model.TableCount{Table: step.table, Count: n})
	}

	remaining, err := verifyOnlyAdmin(ctx, tx, admin.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, engineErr("commit", err)
	}
	g.log.Info().Int64("admin_id", admin.ID).Int64("remaining_users", remaining).Msg("database cleaned")

	return &model.CleanupResult{Deleted: deleted, RemainingUsers: remaining, AdminUser: *admin}, nil
}

func (g *Gateway) preservedAccount(ctx context.Context, tx *sql.Tx) (*model.AdminAccount, error) {
	var admin model.AdminAccount
	err := tx.QueryRowContext(ctx,
		g.db.Rebind(`SELECT id, name, email, role FROM users WHERE email = ? AND role = ?`),
		g.admin.Email, g.admin.Role,
	).Scan(&admin.ID, &admin.Name, &admin.Email, &admin.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPreservedRecordMissing
	}
	if err != nil {
		return nil, engineErr("find admin", err)
	}
	return &admin, nil
}

func verifyOnlyAdmin(ctx context.Context, tx *sql.Tx, adminID int64) (int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM users`)
	if err != nil {
		return 0, engineErr("verify users", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, engineErr("verify users", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, engineErr("verify users", err)
	}
	if len(ids) != 1 || ids[0] != adminID {
		return 0, fmt.Errorf("%w: %d users remain", ErrInvariantViolation, len(ids))
	}
	return 1, nil
}
