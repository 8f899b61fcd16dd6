// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package cryptox holds the device-side key derivation and content cipher.
// The derived key never leaves the device.
package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the length of a derived content key in bytes.
	KeySize = 32
	// Iterations is the PBKDF2 work factor. All devices of an account must
	// agree on it, otherwise they derive different keys.
	Iterations = 100_000
)

// ErrInvalidKey means a stored key does not decode to a usable key.
var ErrInvalidKey = errors.New("invalid content key")

// DeriveKey turns the account password into the content key with
// PBKDF2-HMAC-SHA256 and an empty salt, so every device of the account
// arrives at the same key from the password alone.
func DeriveKey(password string) []byte {
	return pbkdf2.Key([]byte(password), nil, Iterations, KeySize, sha256.New)
}

// EncodeKey returns the padded base64url text form used for local storage.
func EncodeKey(key []byte) string {
	return base64.URLEncoding.EncodeToString(key)
}

// DecodeKey parses a key produced by EncodeKey.
func DecodeKey(s string) ([]byte, error) {
	key, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(key))
	}
	return key, nil
}
