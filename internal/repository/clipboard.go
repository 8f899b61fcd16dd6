// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/cloudcopy/internal/models"
)

type clipboardRow struct {
	Email      string `db:"email"`
	Ciphertext string `db:"ciphertext"`
	UpdatedAt  int64  `db:"updated_at"`
}

// PutClipboard replaces the clipboard state of an account in a single upsert.
func (r *Repository) PutClipboard(ctx context.Context, state *models.ClipboardState) error {
	_, err := r.db.ExecContext(ctx,
		r.q(`INSERT INTO clipboard_states (email, ciphertext, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (email) DO UPDATE SET ciphertext = excluded.ciphertext, updated_at = excluded.updated_at`),
		state.Email, state.Ciphertext, toUnix(state.UpdatedAt))
	return err
}

// GetClipboard returns the clipboard state of an account.
func (r *Repository) GetClipboard(ctx context.Context, email string) (*models.ClipboardState, error) {
	var row clipboardRow
	err := r.db.GetContext(ctx, &row,
		r.q(`SELECT email, ciphertext, updated_at FROM clipboard_states WHERE email = ?`), email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &models.ClipboardState{
		Email:      row.Email,
		Ciphertext: row.Ciphertext,
		UpdatedAt:  fromUnix(row.UpdatedAt),
	}, nil
}
