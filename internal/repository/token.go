// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"time"

	"codeberg.org/oliverandrich/cloudcopy/internal/models"
)

type tokenRow struct {
	Hash      string        `db:"hash"`
	Email     string        `db:"email"`
	CreatedAt int64         `db:"created_at"`
	ExpiresAt sql.NullInt64 `db:"expires_at"`
	RevokedAt sql.NullInt64 `db:"revoked_at"`
}

func (row tokenRow) model() models.Token {
	return models.Token{
		Hash:      row.Hash,
		Email:     row.Email,
		CreatedAt: fromUnix(row.CreatedAt),
		ExpiresAt: fromNullUnix(row.ExpiresAt),
		RevokedAt: fromNullUnix(row.RevokedAt),
	}
}

// TokenExists reports whether a token with the given hash was ever issued.
func (r *Repository) TokenExists(ctx context.Context, hash string) (bool, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, r.q(`SELECT COUNT(*) FROM tokens WHERE hash = ?`), hash); err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateToken stores a new token unless its hash is already taken.
func (r *Repository) CreateToken(ctx context.Context, token *models.Token) error {
	res, err := r.db.ExecContext(ctx,
		r.q(`INSERT INTO tokens (hash, email, created_at, expires_at, revoked_at) VALUES (?, ?, ?, ?, ?) ON CONFLICT (hash) DO NOTHING`),
		token.Hash, token.Email, toUnix(token.CreatedAt), toNullUnix(token.ExpiresAt), toNullUnix(token.RevokedAt))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

// GetToken retrieves a token by hash.
func (r *Repository) GetToken(ctx context.Context, hash string) (*models.Token, error) {
	var row tokenRow
	err := r.db.GetContext(ctx, &row,
		r.q(`SELECT hash, email, created_at, expires_at, revoked_at FROM tokens WHERE hash = ?`), hash)
	if err != nil {
		return nil, wrapError(err)
	}
	token := row.model()
	return &token, nil
}

// RevokeToken marks a token revoked. Revoking twice keeps the first timestamp.
func (r *Repository) RevokeToken(ctx context.Context, hash string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		r.q(`UPDATE tokens SET revoked_at = ? WHERE hash = ? AND revoked_at IS NULL`), toUnix(at), hash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		exists, err := r.TokenExists(ctx, hash)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

// ListTokens returns all tokens of an account, oldest first.
func (r *Repository) ListTokens(ctx context.Context, email string) ([]models.Token, error) {
	var rows []tokenRow
	err := r.db.SelectContext(ctx, &rows,
		r.q(`SELECT hash, email, created_at, expires_at, revoked_at FROM tokens WHERE email = ? ORDER BY created_at, hash`), email)
	if err != nil {
		return nil, err
	}
	tokens := make([]models.Token, 0, len(rows))
	for _, row := range rows {
		tokens = append(tokens, row.model())
	}
	return tokens, nil
}
