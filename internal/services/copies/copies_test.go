// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package copies_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/cloudcopy/internal/config"
	"codeberg.org/oliverandrich/cloudcopy/internal/repository"
	"codeberg.org/oliverandrich/cloudcopy/internal/services/auth"
	"codeberg.org/oliverandrich/cloudcopy/internal/services/copies"
	"codeberg.org/oliverandrich/cloudcopy/internal/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	auth   *auth.Service
	copies *copies.Service
	hub    *sse.Hub
	store  *repository.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemory()
	authSvc := auth.NewService(store, &config.AuthConfig{BcryptCost: bcrypt.MinCost}, nil)
	hub := sse.NewHub()
	return &fixture{
		auth:   authSvc,
		copies: copies.NewService(store, authSvc, hub),
		hub:    hub,
		store:  store,
	}
}

func (f *fixture) login(t *testing.T, email string) string {
	t.Helper()
	token, err := f.auth.Authenticate(context.Background(), auth.Credentials{Email: email, Password: "hunter2"})
	require.NoError(t, err)
	return token
}

func TestPushPull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.login(t, "alice@example.com")

	pushed, err := f.copies.Push(ctx, token, "ciphertext-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", pushed.Email)
	assert.False(t, pushed.UpdatedAt.IsZero())

	pulled, err := f.copies.Pull(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ciphertext-1", pulled.Ciphertext)
	assert.True(t, pushed.UpdatedAt.Equal(pulled.UpdatedAt))
}

func TestPull_NothingPushedYet(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "alice@example.com")

	_, err := f.copies.Pull(context.Background(), token)

	assert.ErrorIs(t, err, copies.ErrNoClipboard)
}

func TestPushPull_InvalidToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, "alice@example.com")

	_, err := f.copies.Push(ctx, "bogus", "ciphertext")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = f.copies.Pull(ctx, "bogus")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// No state was written for anyone.
	_, err = f.store.GetClipboard(ctx, "alice@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPush_EmptyContents(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "alice@example.com")

	_, err := f.copies.Push(context.Background(), token, "")

	assert.ErrorIs(t, err, copies.ErrEmptyContents)
}

func TestPush_LastWriterWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	laptop := f.login(t, "alice@example.com")
	phone := f.login(t, "alice@example.com")

	t1 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	f.copies.SetClock(func() time.Time { return t1 })
	_, err := f.copies.Push(ctx, laptop, "X")
	require.NoError(t, err)

	t2 := t1.Add(time.Second)
	f.copies.SetClock(func() time.Time { return t2 })
	_, err = f.copies.Push(ctx, phone, "Y")
	require.NoError(t, err)

	for _, token := range []string{laptop, phone} {
		state, err := f.copies.Pull(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "Y", state.Ciphertext)
		assert.True(t, t2.Equal(state.UpdatedAt))
	}
}

func TestPush_AccountsIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.login(t, "alice@example.com")
	bob := f.login(t, "bob@example.com")

	_, err := f.copies.Push(ctx, alice, "alice-secret")
	require.NoError(t, err)

	_, err = f.copies.Pull(ctx, bob)
	assert.ErrorIs(t, err, copies.ErrNoClipboard)
}

func TestPush_Notifies(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "alice@example.com")
	sub := f.hub.Subscribe("alice@example.com")
	defer f.hub.Unsubscribe("alice@example.com", sub)

	ts := time.Date(2025, 2, 3, 4, 5, 6, 7, time.UTC)
	f.copies.SetClock(func() time.Time { return ts })

	_, err := f.copies.Push(context.Background(), token, "ciphertext")
	require.NoError(t, err)

	select {
	case msg := <-sub.C():
		assert.Equal(t, sse.FormatEvent(sse.EventCopy, "2025-02-03T04:05:06.000000007Z"), msg)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected a copy event")
	}
}

func TestPush_RevokedToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.login(t, "alice@example.com")
	require.NoError(t, f.auth.Revoke(ctx, token))

	_, err := f.copies.Push(ctx, token, "ciphertext")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
