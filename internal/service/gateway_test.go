package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"clinic/backend/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T) (*Gateway, *DB) {
	t.Helper()
	db := newTestDB(t)
	return NewGateway(db, testAdmin, zerolog.Nop()), db
}

func TestListTables(t *testing.T) {
	g, _ := newTestGateway(t)

	tables, err := g.ListTables(context.Background())
	require.NoError(t, err)
	assert.Len(t, tables, 19)
	assert.Contains(t, tables, "users")
	assert.Contains(t, tables, "ai_analysis_reports")
	assert.NotContains(t, tables, "sqlite_sequence")
}

func TestListColumns(t *testing.T) {
	g, _ := newTestGateway(t)

	cols, err := g.ListColumns(context.Background(), "services")
	require.NoError(t, err)
	require.NotEmpty(t, cols)
	assert.Equal(t, "id", cols[0].Name)
	assert.True(t, cols[0].PrimaryKey)
	assert.True(t, cols.Has("price"))

	var name model.Column
	for _, c := range cols {
		if c.Name == "name" {
			name = c
		}
	}
	assert.False(t, name.Nullable)
	assert.True(t, name.IsText())
}

func TestUnknownTableIsRejected(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	for _, table := range []string{"nope", "users; DROP TABLE users", `users"`, ""} {
		t.Run(table, func(t *testing.T) {
			_, err := g.ListColumns(ctx, table)
			assert.ErrorIs(t, err, ErrInvalidTable)

			_, err = g.GetTableData(ctx, model.TableDataRequest{Table: table})
			assert.ErrorIs(t, err, ErrInvalidTable)

			_, err = g.InsertRecord(ctx, table, map[string]any{"name": "x"})
			assert.ErrorIs(t, err, ErrInvalidTable)

			_, err = g.UpdateRecord(ctx, table, 1, map[string]any{"name": "x"})
			assert.ErrorIs(t, err, ErrInvalidTable)

			_, err = g.DeleteRecord(ctx, table, 1)
			assert.ErrorIs(t, err, ErrInvalidTable)
		})
	}

	tables, err := g.ListTables(ctx)
	require.NoError(t, err)
	assert.Contains(t, tables, "users")
}

func TestInsertRecordDropsUnknownFields(t *testing.T) {
	g, db := newTestGateway(t)
	ctx := context.Background()

	res, err := g.InsertRecord(ctx, "services", map[string]any{
		"name":                "Night Guard",
		"price":               json.Number("95.5"),
		"duration_minutes":    json.Number("20"),
		"extra_unknown_field": "ignored",
		"id":                  json.Number("999"),
		"created_at":          "2000-01-01",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "price", "duration_minutes"}, res.InsertedData.Names())
	assert.Equal(t, []any{"Night Guard", 95.5, int64(20)}, res.InsertedData.Values())
	assert.EqualValues(t, 9, res.ID)

	var name string
	var price float64
	require.NoError(t, db.QueryRowContext(ctx, `SELECT name, price FROM services WHERE id = ?`, res.ID).Scan(&name, &price))
	assert.Equal(t, "Night Guard", name)
	assert.Equal(t, 95.5, price)
}

func TestInsertRecordWithoutWritableFields(t *testing.T) {
	g, db := newTestGateway(t)

	_, err := g.InsertRecord(context.Background(), "services", map[string]any{"extra_unknown_field": 1, "id": 5})
	assert.ErrorIs(t, err, ErrNoWritableFields)
	assert.EqualValues(t, 8, countRows(t, db, "services"))
}

func TestInsertRecordConstraintErrorIsEngineError(t *testing.T) {
	g, _ := newTestGateway(t)

	_, err := g.InsertRecord(context.Background(), "services", map[string]any{"name": "Root Canal"})
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.True(t, IsUniqueViolation(err))
	assert.NotErrorIs(t, err, ErrConflict)
}

func TestUpdateRecordOverwritesUpdatedAt(t *testing.T) {
	g, db := newTestGateway(t)
	ctx := context.Background()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	ins, err := g.InsertRecord(ctx, "transactions", map[string]any{
		"patient_name":     "Sara",
		"service_name":     "Root Canal",
		"total_amount":     json.Number("400"),
		"remaining_amount": json.Number("400"),
	})
	require.NoError(t, err)
	id := ins.ID.(int64)

	res, err := g.UpdateRecord(ctx, "transactions", id, map[string]any{
		"notes":      "second visit",
		"updated_at": "2000-01-01 00:00:00",
		"created_at": "1999-01-01 00:00:00",
		"id":         json.Number("77"),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Changes)
	assert.Equal(t, []string{"notes", "updated_at"}, res.UpdatedData.Names())
	got, _ := res.UpdatedData.Get("updated_at")
	assert.Equal(t, fixed, got)

	var stored any
	require.NoError(t, db.QueryRowContext(ctx, `SELECT updated_at FROM transactions WHERE id = ?`, id).Scan(&stored))
	switch v := stored.(type) {
	case time.Time:
		assert.True(t, fixed.Equal(v), "stored %v", v)
	case string:
		assert.True(t, strings.HasPrefix(v, "2026-01-02 03:04:05"), "stored %q", v)
	default:
		t.Fatalf("unexpected updated_at type %T", stored)
	}
	assert.EqualValues(t, 1, countRows(t, db, "transactions"))
}

func TestUpdateRecordErrors(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	_, err := g.UpdateRecord(ctx, "services", 4242, map[string]any{"name": "Ghost"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = g.UpdateRecord(ctx, "services", 1, map[string]any{"created_at": "now", "bogus": 1})
	assert.ErrorIs(t, err, ErrNoWritableFields)

	_, err = g.UpdateRecord(ctx, "patient_no_such_table", 1, map[string]any{"name": "x"})
	assert.ErrorIs(t, err, ErrInvalidTable)

	res, err := g.UpdateRecord(ctx, "services", 1, map[string]any{"price": json.Number("55")})
	require.NoError(t, err)
	assert.Equal(t, []string{"price"}, res.UpdatedData.Names())
}

func TestUpdateRecordTouchesUpdatedAt(t *testing.T) {
	g, db := newTestGateway(t)
	ctx := context.Background()
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	g.now = func() time.Time { return fixed }
	id := seedUser(t, db, "Sara", "sara@mail.com", "patient")

	res, err := g.UpdateRecord(ctx, "users", id, map[string]any{"updated_at": "2000-01-01 00:00:00"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Changes)
	assert.Equal(t, []string{"updated_at"}, res.UpdatedData.Names())

	res, err = g.UpdateRecord(ctx, "users", id, map[string]any{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Changes)

	_, err = g.UpdateRecord(ctx, "users", 4242, map[string]any{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRecord(t *testing.T) {
	g, db := newTestGateway(t)
	ctx := context.Background()

	_, err := g.DeleteRecord(ctx, "services", 9999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualValues(t, 8, countRows(t, db, "services"))

	res, err := g.DeleteRecord(ctx, "services", 8)
	require.NoError(t, err)
	assert.Equal(t, &model.DeleteResult{ID: 8, Changes: 1}, res)
	assert.EqualValues(t, 7, countRows(t, db, "services"))
}

func TestGetTableDataPagination(t *testing.T) {
	g, db := newTestGateway(t)
	ctx := context.Background()
	for i := 1; i <= 45; i++ {
		action := "login"
		if i%5 == 0 {
			action = "export-report"
		}
		insertRow(t, db, `INSERT INTO activity_logs (action, details) VALUES (?, ?)`, action, fmt.Sprintf("entry %d", i))
	}

	first, err := g.GetTableData(ctx, model.TableDataRequest{Table: "activity_logs", Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, model.Pagination{CurrentPage: 1, TotalPages: 3, TotalRows: 45, Limit: 20}, first.Pagination)
	require.Len(t, first.Rows, 20)
	id, _ := first.Rows[0].Get("id")
	assert.EqualValues(t, 45, id)

	last, err := g.GetTableData(ctx, model.TableDataRequest{Table: "activity_logs", Page: 3, Limit: 20})
	require.NoError(t, err)
	require.Len(t, last.Rows, 5)
	id, _ = last.Rows[4].Get("id")
	assert.EqualValues(t, 1, id)

	beyond, err := g.GetTableData(ctx, model.TableDataRequest{Table: "activity_logs", Page: 9, Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, beyond.Rows)
	assert.NotNil(t, beyond.Rows)

	defaults, err := g.GetTableData(ctx, model.TableDataRequest{Table: "activity_logs"})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPageLimit, defaults.Pagination.Limit)
	assert.Equal(t, 1, defaults.Pagination.CurrentPage)

	search, err := g.GetTableData(ctx, model.TableDataRequest{Table: "activity_logs", Search: "export", Limit: 5})
	require.NoError(t, err)
	assert.EqualValues(t, 9, search.Pagination.TotalRows)
	assert.EqualValues(t, 2, search.Pagination.TotalPages)
	for _, r := range search.Rows {
		action, _ := r.Get("action")
		assert.Equal(t, "export-report", action)
	}
}

func TestGetTableDataEmptyTable(t *testing.T) {
	g, _ := newTestGateway(t)

	data, err := g.GetTableData(context.Background(), model.TableDataRequest{Table: "invoices"})
	require.NoError(t, err)
	assert.Equal(t, "invoices", data.TableName)
	assert.Empty(t, data.Rows)
	assert.EqualValues(t, 0, data.Pagination.TotalPages)
	assert.NotEmpty(t, data.Columns)
}

func TestExecuteQuery(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	res, err := g.ExecuteQuery(ctx, model.QueryRequest{
		Query:  "SELECT name, price FROM services WHERE price > ? ORDER BY price",
		Params: []any{json.Number("1000")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	name, _ := res.Results[0].Get("name")
	assert.Equal(t, "Orthodontics", name)

	empty, err := g.ExecuteQuery(ctx, model.QueryRequest{Query: "SELECT * FROM invoices"})
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Count)
	assert.NotNil(t, empty.Results)
}

func TestExecuteQueryRejectsWrites(t *testing.T) {
	g, db := newTestGateway(t)
	ctx := context.Background()

	for _, q := range []string{
		"DELETE FROM services",
		"UPDATE services SET price = 0",
		"SELECT 1; DROP TABLE services",
		"/* sneaky */ DELETE FROM services",
		"PRAGMA foreign_keys = OFF",
		"SELECT 1 AS [a'] ; DELETE FROM services; SELECT 2 AS [']",
		"SELECT 1 /* /*/; DELETE FROM services; /* */",
	} {
		_, err := g.ExecuteQuery(ctx, model.QueryRequest{Query: q})
		assert.ErrorIs(t, err, ErrForbiddenStatement, q)
	}
	assert.EqualValues(t, 8, countRows(t, db, "services"))

	_, err := g.ExecuteQuery(ctx, model.QueryRequest{Query: "SELECT * FROM missing_table"})
	var ee *EngineError
	assert.True(t, errors.As(err, &ee))
}

func TestReadOnlyQueryRefusesWrites(t *testing.T) {
	g, db := newTestGateway(t)
	ctx := context.Background()
	seedUser(t, db, "Sara", "sara@mail.com", "patient")
	seedUser(t, db, "Omar", "omar@mail.com", "doctor")

	for _, q := range []string{
		"DELETE FROM users RETURNING id",
		"SELECT 1 AS [a'] ; DELETE FROM users; SELECT 2 AS [']",
		"SELECT 1; DELETE FROM users; SELECT 2",
	} {
		_, err := g.readOnlyQuery(ctx, q, nil)
		var ee *EngineError
		assert.True(t, errors.As(err, &ee), q)
		assert.EqualValues(t, 2, countRows(t, db, "users"), q)
	}

	rows, err := g.readOnlyQuery(ctx, "SELECT COUNT(*) AS n FROM users", nil)
	require.NoError(t, err)
	n, _ := rows[0].Get("n")
	assert.EqualValues(t, 2, n)

	_, err = g.InsertRecord(ctx, "services", map[string]any{"name": "Night Guard"})
	require.NoError(t, err, "connection must leave query_only mode")
	assert.EqualValues(t, 9, countRows(t, db, "services"))
}

func TestStatsAndSearch(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	stats, err := g.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 19, stats.TableCount)
	assert.EqualValues(t, 8, stats.TotalRows)

	hits, err := g.Search(ctx, "root", 0)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "services", hits[0].Table)

	limited, err := g.Search(ctx, "Teeth", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = g.Search(ctx, "  ", 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
