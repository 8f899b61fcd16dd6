// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package devicestate persists the login of a device: email, bearer token
// and the derived content key.
package devicestate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/cloudcopy/internal/cryptox"
	"codeberg.org/oliverandrich/cloudcopy/internal/database"
	"github.com/vinovest/sqlx"
)

const (
	keyEmail = "email"
	keyToken = "token"
	keyKey   = "key"
)

// ErrNotLoggedIn is returned by Load when email, token or key is missing.
var ErrNotLoggedIn = errors.New("device is not logged in")

// State is what a device needs to sync.
type State struct {
	Email string
	Token string
	Key   []byte
}

// Store is a key/value metadata table in the device's SQLite file.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens or creates the state database at path.
func Open(path string) (*Store, error) {
	db, err := database.OpenDevice(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open device state: %w", err)
	}
	return New(db), nil
}

// New wraps an already migrated device database.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:  db,
		now: time.Now,
	}
}

// Close closes the state database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored login, or ErrNotLoggedIn if any part is missing.
func (s *Store) Load(ctx context.Context) (*State, error) {
	email, err := s.get(ctx, keyEmail)
	if err != nil {
		return nil, err
	}
	token, err := s.get(ctx, keyToken)
	if err != nil {
		return nil, err
	}
	encoded, err := s.get(ctx, keyKey)
	if err != nil {
		return nil, err
	}
	if email == "" || token == "" || encoded == "" {
		return nil, ErrNotLoggedIn
	}

	key, err := cryptox.DecodeKey(encoded)
	if err != nil {
		return nil, err
	}

	return &State{Email: email, Token: token, Key: key}, nil
}

// Save replaces the stored login in one transaction.
func (s *Store) Save(ctx context.Context, state *State) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := s.now().UnixNano()
	values := map[string]string{
		keyEmail: state.Email,
		keyToken: state.Token,
		keyKey:   cryptox.EncodeKey(state.Key),
	}
	for key, value := range values {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, value, now)
		if err != nil {
			return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
		}
	}

	return tx.Commit()
}

// ClearToken drops the token but keeps email and key, so a later login
// only needs the password.
func (s *Store) ClearToken(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, keyToken); err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", keyToken, err)
	}
	return nil
}

// Clear removes everything.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM metadata`); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	return nil
}

// Email returns the stored email, or "" when none is stored.
func (s *Store) Email(ctx context.Context) (string, error) {
	return s.get(ctx, keyEmail)
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM metadata WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}
