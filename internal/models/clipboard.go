// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// ClipboardState is the latest encrypted clipboard value of an account.
// The server never sees the plaintext. The wire form is built by the
// newest-copy handler.
type ClipboardState struct {
	UpdatedAt  time.Time
	Email      string
	Ciphertext string
}
