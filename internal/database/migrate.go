// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database

import (
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
	"github.com/vinovest/sqlx"
)

//go:embed migrations/server/*.sql migrations/device/*.sql
var embedMigrations embed.FS

const (
	serverMigrations = "migrations/server"
	deviceMigrations = "migrations/device"
)

// RunMigrations runs all pending server migrations.
func RunMigrations(db *sqlx.DB) error {
	return runMigrations(db.DB, db.DriverName(), serverMigrations)
}

func runMigrations(db *sql.DB, driver, dir string) error {
	if err := prepare(driver); err != nil {
		return err
	}

	return goose.Up(db, dir)
}

func prepare(driver string) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	return goose.SetDialect(dialect(driver))
}

func dialect(driver string) string {
	if driver == DriverPostgres {
		return "postgres"
	}
	return "sqlite3"
}
