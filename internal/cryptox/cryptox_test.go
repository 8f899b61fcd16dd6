// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package cryptox_test

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"codeberg.org/oliverandrich/cloudcopy/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	key1 := cryptox.DeriveKey("correct horse")
	key2 := cryptox.DeriveKey("correct horse")

	assert.Equal(t, key1, key2)
	assert.Len(t, key1, cryptox.KeySize)

	// PBKDF2-HMAC-SHA256, 100000 iterations, empty salt
	assert.Equal(t, "c0921865c3557ec5906c04fe7178f533f0f1565885561a6485f8d6d30fdc8487", hex.EncodeToString(key1))
}

func TestDeriveKey_DifferentPasswords(t *testing.T) {
	assert.NotEqual(t, cryptox.DeriveKey("password-1"), cryptox.DeriveKey("password-2"))
}

func TestEncodeKey(t *testing.T) {
	key := cryptox.DeriveKey("correct horse")

	encoded := cryptox.EncodeKey(key)
	assert.Equal(t, "wJIYZcNVfsWQbAT-cXj1M_DxVliFVhpkhfjW0w_chIc=", encoded)

	decoded, err := cryptox.DecodeKey(encoded)
	require.NoError(t, err)
	assert.Equal(t, key, decoded)
}

func TestDecodeKey_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "***"},
		{"too short", base64.URLEncoding.EncodeToString([]byte("short"))},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cryptox.DecodeKey(tt.input)
			assert.ErrorIs(t, err, cryptox.ErrInvalidKey)
		})
	}
}

func newCipher(t *testing.T, password string) *cryptox.Cipher {
	t.Helper()
	c, err := cryptox.NewCipher(cryptox.DeriveKey(password))
	require.NoError(t, err)
	return c
}

func TestCipher_RoundTrip(t *testing.T) {
	c := newCipher(t, "hunter2")

	for _, text := range []string{"hello", "", "multi\nline\ttext", "ünïcödé ✂️"} {
		sealed, err := c.Encrypt([]byte(text))
		require.NoError(t, err)

		opened, err := c.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, text, string(opened))
	}
}

func TestCipher_FreshNonce(t *testing.T) {
	c := newCipher(t, "hunter2")

	a, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestCipher_WrongKey(t *testing.T) {
	sealed, err := newCipher(t, "hunter2").Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = newCipher(t, "hunter3").Decrypt(sealed)
	assert.ErrorIs(t, err, cryptox.ErrDecrypt)
}

func TestCipher_Tampered(t *testing.T) {
	c := newCipher(t, "hunter2")
	sealed, err := c.Encrypt([]byte("secret"))
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01

	_, err = c.Decrypt(base64.RawURLEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, cryptox.ErrDecrypt)
}

func TestCipher_Malformed(t *testing.T) {
	c := newCipher(t, "hunter2")

	for _, input := range []string{"", "not base64!", "c2hvcnQ"} {
		_, err := c.Decrypt(input)
		assert.ErrorIs(t, err, cryptox.ErrDecrypt, input)
	}
}

func TestNewCipher_InvalidKey(t *testing.T) {
	_, err := cryptox.NewCipher([]byte("too short"))
	assert.ErrorIs(t, err, cryptox.ErrInvalidKey)
}
