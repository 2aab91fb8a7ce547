package service

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidTable           = errors.New("invalid table name")
	ErrNoWritableFields       = errors.New("no valid fields provided")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrForbidden              = errors.New("insufficient permissions")
	ErrForbiddenStatement     = errors.New("only SELECT queries are allowed")
	ErrNotFound               = errors.New("record not found")
	ErrConflict               = errors.New("record already exists")
	ErrPreservedRecordMissing = errors.New("admin account not found, cleanup aborted")
	ErrInvariantViolation     = errors.New("cleanup verification failed")
)

// EngineError wraps a failure reported by the database engine.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *EngineError) Unwrap() error { return e.Err }

// engineErr wraps err as an EngineError unless it already is one.
func engineErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return err
	}
	return &EngineError{Op: op, Err: err}
}

func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
