package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config selects and configures a connection.
type Config struct {
	// Driver is detected from URL when empty.
	Driver Driver
	// URL is the PostgreSQL DSN. A sqlite:// URL overrides SQLitePath.
	URL string
	// SQLitePath defaults to DefaultSQLitePath.
	SQLitePath string
	// MaxConns caps the PostgreSQL pool; 0 keeps the pgx default.
	MaxConns int
}

// Opener opens a connection for one driver.
type Opener func(ctx context.Context, cfg Config) (Connection, error)

var (
	openersMu sync.RWMutex
	openers   = map[Driver]Opener{}
)

// RegisterDriver installs the opener for d. The postgres and sqlite
// subpackages call it from init, so a binary only links the drivers it
// imports.
func RegisterDriver(d Driver, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[d] = open
}

// NewConnection opens a connection with the registered opener for the
// configured or detected driver.
func NewConnection(ctx context.Context, cfg Config) (Connection, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DetectDriver(cfg.URL)
	}
	if driver == DriverSQLite {
		if path, ok := strings.CutPrefix(cfg.URL, "sqlite://"); ok && path != "" {
			cfg.SQLitePath = path
		}
	}

	openersMu.RLock()
	open, ok := openers[driver]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("database driver %q is not registered", driver)
	}
	return open(ctx, cfg)
}

// DefaultSQLitePath is ~/.portal/portal.db, or ./.portal/portal.db when the
// home directory is unknown.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".portal", "portal.db")
}

// EnsureDirectory creates the parent directory of path.
func EnsureDirectory(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
