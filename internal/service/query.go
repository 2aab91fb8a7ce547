package service

import (
	"context"
	"fmt"

	"clinic/backend/helper"
	"clinic/backend/internal/model"
)

// ExecuteQuery runs a single read-only SELECT with bound parameters.
// Placeholders are passed to the driver as written.
func (g *Gateway) ExecuteQuery(ctx context.Context, req model.QueryRequest) (*model.QueryResult, error) {
	if err := helper.CheckReadOnly(req.Query, g.db.Dialect.GuardFlavor()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrForbiddenStatement, err)
	}

	args := make([]any, len(req.Params))
	for i, p := range req.Params {
		args[i] = bindValue(p)
	}

	g.log.Debug().Str("query", req.Query).Int("params", len(args)).Msg("executing query")
	results, err := g.readOnlyQuery(ctx, req.Query, args)
	if err != nil {
		return nil, err
	}
	return &model.QueryResult{Query: req.Query, Results: results, Count: len(results)}, nil
}

// readOnlyQuery runs query on a pinned connection the engine keeps read-only,
// whatever the guard let through.
func (g *Gateway) readOnlyQuery(ctx context.Context, query string, args []any) ([]model.Record, error) {
	conn, err := g.db.Conn(ctx)
	if err != nil {
		return nil, engineErr("query", err)
	}
	defer conn.Close()

	results, err := g.db.Dialect.QueryReadOnly(ctx, conn, query, args)
	if err != nil {
		return nil, engineErr("query", err)
	}
	return results, nil
}
