package service

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testAdmin = AdminIdentity{Email: "admin@clinic.com", Role: "admin"}

// newTestDB opens a private in-memory SQLite database with the clinic schema.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := "file:" + name + "?mode=memory&_pragma=foreign_keys(1)&_time_format=sqlite"

	db, err := Open(context.Background(), "sqlite", dsn, PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(context.Background(), db, zerolog.Nop()))
	return db
}

func seedUser(t *testing.T, db *DB, name, email, role string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRowContext(context.Background(),
		`INSERT INTO users (name, email, password, role) VALUES (?, ?, 'x', ?) RETURNING id`,
		name, email, role,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func insertRow(t *testing.T, db *DB, query string, args ...any) int64 {
	t.Helper()
	var id int64
	require.NoError(t, db.QueryRowContext(context.Background(), query+" RETURNING id", args...).Scan(&id))
	return id
}

func countRows(t *testing.T, db *DB, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&n))
	return n
}
