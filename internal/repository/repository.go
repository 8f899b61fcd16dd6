// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package repository persists accounts, tokens and clipboard states.
// SQL (SQLite or PostgreSQL), Redis and in-memory backends implement Store.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"codeberg.org/oliverandrich/cloudcopy/internal/models"
	"github.com/vinovest/sqlx"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
	// ErrExists is returned by insert-if-absent operations when the key is taken.
	ErrExists = errors.New("record already exists")
)

// Store is the storage contract of the server. Every method is atomic on
// its own; CreateAccount and CreateToken insert only if the key is absent,
// PutClipboard replaces the previous state in one step.
type Store interface {
	Ping(ctx context.Context) error

	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, email string) (*models.Account, error)

	TokenExists(ctx context.Context, hash string) (bool, error)
	CreateToken(ctx context.Context, token *models.Token) error
	GetToken(ctx context.Context, hash string) (*models.Token, error)
	RevokeToken(ctx context.Context, hash string, at time.Time) error
	ListTokens(ctx context.Context, email string) ([]models.Token, error)

	PutClipboard(ctx context.Context, state *models.ClipboardState) error
	GetClipboard(ctx context.Context, email string) (*models.ClipboardState, error)
}

// Repository implements Store on top of sqlx.
type Repository struct {
	db *sqlx.DB
}

var _ Store = (*Repository)(nil)

// New creates a new Repository instance.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// q rewrites ? placeholders for the connected driver.
func (r *Repository) q(query string) string {
	return r.db.Rebind(query)
}

func wrapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func toNullUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullUnix(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return fromUnix(n.Int64)
}
