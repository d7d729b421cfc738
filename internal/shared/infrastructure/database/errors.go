package database

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNoRows is returned when a query expected to return a row returns none.
var ErrNoRows = errors.New("no rows in result set")

// ErrStaleWrite is returned when an optimistic update matched no row at the
// expected version.
var ErrStaleWrite = errors.New("stale write: row was modified concurrently")

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// IsNoRows returns true if the error indicates no rows were found.
// This handles both pgx.ErrNoRows and sql.ErrNoRows.
func IsNoRows(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows) ||
		errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, ErrNoRows)
}

// IsUniqueViolation reports whether err is a unique constraint violation
// from PostgreSQL or SQLite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
