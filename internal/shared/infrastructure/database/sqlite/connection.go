// Package sqlite registers the pure Go SQLite driver used in local mode.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/database"
)

func init() {
	database.RegisterDriver(database.DriverSQLite, NewConnection)
}

const memoryPath = ":memory:"

var (
	basePragmas = []string{"foreign_keys(1)", "busy_timeout(5000)"}
	filePragmas = []string{"journal_mode(WAL)", "synchronous(NORMAL)"}
)

// dsn appends the connection pragmas to path. WAL only applies to files.
func dsn(path string) string {
	pragmas := basePragmas
	if path != memoryPath {
		pragmas = append(append([]string{}, basePragmas...), filePragmas...)
	}

	var b strings.Builder
	b.WriteString(path)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	for _, p := range pragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// Connection is a database/sql pool on the modernc driver.
type Connection struct {
	*database.SQLConnection
}

// NewConnection opens cfg.SQLitePath, creating its directory. The pool holds
// a single connection: SQLite serialises writers, and ":memory:" state lives
// only as long as its connection.
func NewConnection(ctx context.Context, cfg database.Config) (database.Connection, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = database.DefaultSQLitePath()
	}
	if path != memoryPath {
		if err := database.EnsureDirectory(path); err != nil {
			return nil, fmt.Errorf("sqlite: create directory for %s: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
	}
	return NewConnectionFromDB(db), nil
}

// NewConnectionFromDB wraps an open database.
func NewConnectionFromDB(db *sql.DB) *Connection {
	return &Connection{SQLConnection: database.NewSQLConnection(db, database.DriverSQLite)}
}
