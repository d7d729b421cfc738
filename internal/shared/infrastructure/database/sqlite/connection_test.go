package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/portal/internal/shared/application"
	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/database"
)

func openTestConnection(t *testing.T) database.Connection {
	t.Helper()

	conn, err := NewConnection(context.Background(), database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "portal.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = conn.Exec(context.Background(), `CREATE TABLE plans (id TEXT PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)
	return conn
}

func countRows(t *testing.T, conn database.Connection) int {
	t.Helper()
	var count int
	require.NoError(t, conn.QueryRow(context.Background(), `SELECT COUNT(*) FROM plans`).Scan(&count))
	return count
}

func TestNewConnection(t *testing.T) {
	t.Run("file database", func(t *testing.T) {
		conn := openTestConnection(t)

		assert.NoError(t, conn.Ping(context.Background()))
		assert.Equal(t, database.DriverSQLite, conn.Driver())
	})

	t.Run("in-memory database keeps state across calls", func(t *testing.T) {
		ctx := context.Background()
		conn, err := NewConnection(ctx, database.Config{SQLitePath: ":memory:"})
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Exec(ctx, `CREATE TABLE plans (id TEXT PRIMARY KEY, name TEXT)`)
		require.NoError(t, err)
		_, err = conn.Exec(ctx, `INSERT INTO plans (id, name) VALUES (?, ?)`, "1", "basic")
		require.NoError(t, err)

		assert.Equal(t, 1, countRows(t, conn))
	})

	t.Run("factory resolves sqlite URLs", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "factory.db")
		conn, err := database.NewConnection(context.Background(), database.Config{URL: "sqlite://" + path})
		require.NoError(t, err)
		defer conn.Close()

		assert.Equal(t, database.DriverSQLite, conn.Driver())
	})
}

func TestConnection_ExecAndQuery(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)

	result, err := conn.Exec(ctx, `INSERT INTO plans (id, name) VALUES (?, ?), (?, ?)`, "1", "basic", "2", "premium")
	require.NoError(t, err)
	affected, err := result.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	rows, err := conn.Query(ctx, `SELECT name FROM plans ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"basic", "premium"}, names)

	err = conn.QueryRow(ctx, `SELECT name FROM plans WHERE id = ?`, "missing").Scan(new(string))
	assert.True(t, database.IsNoRows(err))
}

func TestUnitOfWork(t *testing.T) {
	ctx := context.Background()

	t.Run("commits work done through the context executor", func(t *testing.T) {
		conn := openTestConnection(t)
		uow := database.NewUnitOfWork(conn)

		err := application.WithUnitOfWork(ctx, uow, func(txCtx context.Context) error {
			_, err := database.ExecutorFromContext(txCtx, conn).Exec(txCtx, `INSERT INTO plans (id, name) VALUES (?, ?)`, "1", "basic")
			return err
		})

		require.NoError(t, err)
		assert.Equal(t, 1, countRows(t, conn))
	})

	t.Run("rolls back every write on failure", func(t *testing.T) {
		conn := openTestConnection(t)
		uow := database.NewUnitOfWork(conn)

		err := application.WithUnitOfWork(ctx, uow, func(txCtx context.Context) error {
			exec := database.ExecutorFromContext(txCtx, conn)
			if _, err := exec.Exec(txCtx, `INSERT INTO plans (id, name) VALUES (?, ?)`, "1", "basic"); err != nil {
				return err
			}
			return errors.New("second write failed")
		})

		require.Error(t, err)
		assert.Equal(t, 0, countRows(t, conn))
	})

	t.Run("nested units share the outer transaction", func(t *testing.T) {
		conn := openTestConnection(t)
		uow := database.NewUnitOfWork(conn)

		err := application.WithUnitOfWork(ctx, uow, func(outer context.Context) error {
			if err := application.WithUnitOfWork(outer, uow, func(inner context.Context) error {
				assert.Equal(t, database.TxFromContext(outer), database.TxFromContext(inner))
				_, err := database.ExecutorFromContext(inner, conn).Exec(inner, `INSERT INTO plans (id, name) VALUES (?, ?)`, "1", "basic")
				return err
			}); err != nil {
				return err
			}
			return errors.New("outer failed after inner commit")
		})

		require.Error(t, err)
		assert.Equal(t, 0, countRows(t, conn))
	})
}

func TestDSN(t *testing.T) {
	assert.Equal(t,
		":memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		dsn(":memory:"))
	assert.Equal(t,
		"/tmp/p.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		dsn("/tmp/p.db?mode=rwc"))
}
