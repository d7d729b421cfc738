package database

import (
	"path/filepath"
	"strings"
)

// Driver names a supported SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// DetectDriver picks the dialect for a connection string. An empty string
// selects SQLite so local mode needs no configuration; anything that is not
// recognisably SQLite is treated as PostgreSQL.
func DetectDriver(url string) Driver {
	if url == "" {
		return DriverSQLite
	}
	scheme, _, found := strings.Cut(url, ":")
	if found {
		switch strings.ToLower(scheme) {
		case "sqlite", "file":
			return DriverSQLite
		case "postgres", "postgresql":
			return DriverPostgres
		}
	}
	switch strings.ToLower(filepath.Ext(url)) {
	case ".db", ".sqlite", ".sqlite3":
		return DriverSQLite
	}
	return DriverPostgres
}
