// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/cloudcopy/internal/models"
)

type accountRow struct {
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    int64  `db:"created_at"`
}

// CreateAccount inserts the account unless the email is already registered.
func (r *Repository) CreateAccount(ctx context.Context, account *models.Account) error {
	res, err := r.db.ExecContext(ctx,
		r.q(`INSERT INTO accounts (email, password_hash, created_at) VALUES (?, ?, ?) ON CONFLICT (email) DO NOTHING`),
		account.Email, account.PasswordHash, toUnix(account.CreatedAt))
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

// GetAccount retrieves an account by its email.
func (r *Repository) GetAccount(ctx context.Context, email string) (*models.Account, error) {
	var row accountRow
	err := r.db.GetContext(ctx, &row,
		r.q(`SELECT email, password_hash, created_at FROM accounts WHERE email = ?`), email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &models.Account{
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		CreatedAt:    fromUnix(row.CreatedAt),
	}, nil
}
