package service

import (
	"database/sql"
	"encoding/json"
	"time"

	"clinic/backend/internal/model"
)

// scanRecords reads every row into an ordered record. Byte slices from the
// driver are returned as strings.
func scanRecords(rows *sql.Rows) ([]model.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	records := []model.Record{}
	for rows.Next() {
		values := make([]any, len(cols))
		pointers := make([]any, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		rec := make(model.Record, len(cols))
		for i, name := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rec[i] = model.Field{Name: name, Value: v}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// bindValue converts decoded JSON into something every driver accepts.
func bindValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		return string(b)
	default:
		return v
	}
}

func bindValues(rec model.Record) model.Record {
	out := make(model.Record, len(rec))
	for i, f := range rec {
		out[i] = model.Field{Name: f.Name, Value: bindValue(f.Value)}
	}
	return out
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
