// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver registered as "pgx"
	"github.com/vinovest/sqlx"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// Driver names as registered with database/sql.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Open connects to the server database and applies the server migrations.
// A postgres:// or postgresql:// DSN selects PostgreSQL, anything else is a
// SQLite path.
func Open(dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		dsn = "./data/cloudcopy.db"
	}

	var (
		conn *sqlx.DB
		err  error
	)
	if isPostgres(dsn) {
		conn, err = openPostgres(dsn)
	} else {
		conn, err = openSQLite(dsn)
	}
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

// OpenDevice opens the local SQLite state database of a device.
func OpenDevice(path string) (*sqlx.DB, error) {
	conn, err := openSQLite(path)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(conn.DB, DriverSQLite, deviceMigrations); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func isMemory(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func openPostgres(dsn string) (*sqlx.DB, error) {
	conn, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, err
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

func openSQLite(dsn string) (*sqlx.DB, error) {
	// Create directory for file-based databases
	if !isMemory(dsn) {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}

	memory := isMemory(dsn)
	dsn = addDefaultParams(dsn)

	conn, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, err
	}

	limits := poolFor(memory)
	conn.SetMaxOpenConns(limits.maxOpen)
	conn.SetMaxIdleConns(limits.maxIdle)
	conn.SetConnMaxLifetime(limits.maxLifetime)

	if err := configureSQLite(context.Background(), conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

type pool struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
}

// poolFor returns the connection limits for a SQLite database. Every
// connection to :memory: is a separate database, so an in-memory database
// keeps exactly one connection for as long as it is open.
func poolFor(memory bool) pool {
	if memory {
		return pool{maxOpen: 1, maxIdle: 1}
	}
	return pool{maxOpen: 10, maxIdle: 5, maxLifetime: time.Hour}
}

// addDefaultParams adds recommended SQLite parameters if not already present.
func addDefaultParams(dsn string) string {
	defaults := []struct{ key, param string }{
		{"_txlock", "_txlock=immediate"},
		{"busy_timeout", "_pragma=busy_timeout(5000)"},
		{"foreign_keys", "_pragma=foreign_keys(1)"},
	}

	for _, d := range defaults {
		if !strings.Contains(dsn, d.key) {
			separator := "?"
			if strings.Contains(dsn, "?") {
				separator = "&"
			}
			dsn += separator + d.param
		}
	}

	return dsn
}

// configureSQLite sets PRAGMAs for optimal performance.
func configureSQLite(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA mmap_size = 134217728",
		"PRAGMA journal_size_limit = 27103364",
		"PRAGMA cache_size = 2000",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return err
		}
	}

	return nil
}
