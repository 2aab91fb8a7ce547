package service

import (
	"context"
	"fmt"
	"strings"

	"clinic/backend/internal/model"
)

const DefaultSearchLimit = 50

// Stats counts rows in every catalog table.
func (g *Gateway) Stats(ctx context.Context) (*model.DatabaseStats, error) {
	tables, err := g.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	stats := &model.DatabaseStats{TableCount: len(tables), Tables: model.TableCounts{}}
	for _, t := range tables {
		var n int64
		if err := g.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+g.db.Dialect.QuoteIdent(t)).Scan(&n); err != nil {
			return nil, engineErr("count "+t, err)
		}
		stats.Tables = append(stats.Tables, model.TableCount{Table: t, Count: n})
		stats.TotalRows += n
	}
	return stats, nil
}

// Search runs the table search across every catalog table until limit hits
// are collected.
func (g *Gateway) Search(ctx context.Context, term string, limit int) ([]model.SearchHit, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: search term is required", ErrInvalidInput)
	}
	if limit < 1 {
		limit = DefaultSearchLimit
	}

	tables, err := g.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	hits := []model.SearchHit{}
	for _, t := range tables {
		if len(hits) >= limit {
			break
		}
		cols, err := listColumns(ctx, g.db, g.db.Dialect, t)
		if err != nil {
			return nil, err
		}
		where, args := g.searchClause(cols, term)
		if where == "" {
			continue
		}
		query := "SELECT * FROM " + g.db.Dialect.QuoteIdent(t) + where + " LIMIT ?"
		rows, err := g.db.QueryContext(ctx, g.db.Rebind(query), append(args, limit-len(hits))...)
		if err != nil {
			return nil, engineErr("search "+t, err)
		}
		records, err := scanRecords(rows)
		rows.Close()
		if err != nil {
			return nil, engineErr("search "+t, err)
		}
		for _, r := range records {
			hits = append(hits, model.SearchHit{Table: t, Row: r})
		}
	}
	return hits, nil
}
