// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Token is an issued bearer token. Only the hash of the bearer value is stored.
type Token struct { //nolint:govet // fieldalignment: readability over optimization
	Hash      string    `json:"-"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitzero"` // zero: never expires
	RevokedAt time.Time `json:"revoked_at,omitzero"` // zero: not revoked
}

// Revoked reports whether the token was explicitly revoked.
func (t *Token) Revoked() bool {
	return !t.RevokedAt.IsZero()
}

// Expired reports whether the token has an expiry that lies before now.
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// Active reports whether the token may still be used at the given time.
func (t *Token) Active(now time.Time) bool {
	return !t.Revoked() && !t.Expired(now)
}
