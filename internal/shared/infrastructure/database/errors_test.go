package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(sql.ErrNoRows))
	assert.True(t, IsNoRows(pgx.ErrNoRows))
	assert.True(t, IsNoRows(fmt.Errorf("find contract: %w", ErrNoRows)))
	assert.False(t, IsNoRows(errors.New("boom")))
	assert.False(t, IsNoRows(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	t.Run("postgres", func(t *testing.T) {
		err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
		assert.True(t, IsUniqueViolation(err))
		assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	})

	t.Run("sqlite", func(t *testing.T) {
		err := errors.New("constraint failed: UNIQUE constraint failed: contracts.renewed_from_id (2067)")
		assert.True(t, IsUniqueViolation(err))
	})

	t.Run("other errors", func(t *testing.T) {
		assert.False(t, IsUniqueViolation(errors.New("connection refused")))
		assert.False(t, IsUniqueViolation(nil))
	})
}
