// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package device_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/cloudcopy/internal/client"
	"codeberg.org/oliverandrich/cloudcopy/internal/clipboard"
	"codeberg.org/oliverandrich/cloudcopy/internal/config"
	"codeberg.org/oliverandrich/cloudcopy/internal/cryptox"
	"codeberg.org/oliverandrich/cloudcopy/internal/device"
	"codeberg.org/oliverandrich/cloudcopy/internal/devicestate"
	"codeberg.org/oliverandrich/cloudcopy/internal/repository"
	"codeberg.org/oliverandrich/cloudcopy/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type harness struct {
	url   string
	state string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{MaxBodySize: 4},
		Auth:   config.AuthConfig{BcryptCost: bcrypt.MinCost},
		SSE:    config.SSEConfig{Heartbeat: time.Minute},
	}
	srv := httptest.NewServer(server.NewRouter(cfg, server.NewServices(cfg, repository.NewMemory(), nil)))
	t.Cleanup(srv.Close)

	return &harness{
		url:   srv.URL,
		state: filepath.Join(t.TempDir(), "state.db"),
	}
}

func (h *harness) run(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := device.NewCommand("test")
	cmd.Writer = &out
	base := []string{"cloudcopy", "--server-url", h.url, "--state", h.state, "--interval", "10ms", "--log-level", "error"}
	err := cmd.Run(ctx, append(base, args...))
	return out.String(), err
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	out, err := h.run(context.Background(), "login", "--email", "alice@example.com", "--password", "hunter2")
	require.NoError(t, err)
	require.Contains(t, out, "Logged in as alice@example.com")
}

func (h *harness) loadState(t *testing.T) (*devicestate.State, error) {
	t.Helper()
	store, err := devicestate.Open(h.state)
	require.NoError(t, err)
	defer store.Close()
	return store.Load(context.Background())
}

func TestLogin(t *testing.T) {
	h := newHarness(t)

	h.login(t)

	state, err := h.loadState(t)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", state.Email)
	assert.Len(t, state.Token, 43)
	assert.Equal(t, cryptox.DeriveKey("hunter2"), state.Key)
}

func TestLogin_PromptsForPassword(t *testing.T) {
	h := newHarness(t)
	restore := device.SetPasswordReader(func() ([]byte, error) {
		return []byte("hunter2"), nil
	})
	defer restore()

	out, err := h.run(context.Background(), "login", "--email", "alice@example.com")

	require.NoError(t, err)
	assert.Contains(t, out, "Password for alice@example.com: ")
	assert.Contains(t, out, "Logged in as alice@example.com")
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	_, err := h.run(context.Background(), "login", "--email", "alice@example.com", "--password", "wrong")

	assert.ErrorIs(t, err, device.ErrLoginRejected)
}

func TestLogin_ReusesStoredEmail(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out, err := h.run(context.Background(), "login", "--password", "hunter2")

	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as alice@example.com")
}

func TestLogin_NoEmail(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(context.Background(), "login", "--password", "hunter2")

	assert.ErrorIs(t, err, device.ErrNoEmail)
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.run(ctx, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")

	h.login(t)

	out, err = h.run(ctx, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "alice@example.com")
	assert.Contains(t, out, "Token:  valid")

	state, err := h.loadState(t)
	require.NoError(t, err)
	require.NoError(t, client.New(h.url, time.Second).Revoke(ctx, state.Token, false))

	out, err = h.run(ctx, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Token:  rejected")
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)
	state, err := h.loadState(t)
	require.NoError(t, err)

	out, err := h.run(ctx, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = h.loadState(t)
	assert.ErrorIs(t, err, devicestate.ErrNotLoggedIn)

	_, err = client.New(h.url, time.Second).Authenticate(ctx, client.Credentials{Token: state.Token})
	assert.ErrorIs(t, err, client.ErrInvalidToken)
}

func TestLogout_NotLoggedIn(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(context.Background(), "logout")

	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
}

func TestSync_NotLoggedIn(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(context.Background(), "sync")

	assert.ErrorIs(t, err, device.ErrLoggedOut)
}

func TestSync_RejectedToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)
	state, err := h.loadState(t)
	require.NoError(t, err)
	require.NoError(t, client.New(h.url, time.Second).Revoke(ctx, state.Token, false))

	_, err = h.run(ctx, "sync")
	assert.ErrorIs(t, err, device.ErrTokenRejected)

	_, err = h.loadState(t)
	assert.ErrorIs(t, err, devicestate.ErrNotLoggedIn)

	// The email survives, so login only needs the password.
	out, err := h.run(ctx, "login", "--password", "hunter2")
	require.NoError(t, err)
	assert.Contains(t, out, "alice@example.com")
}

func TestSync_PushesClipboard(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	state, err := h.loadState(t)
	require.NoError(t, err)

	clip := clipboard.NewMemory("initial")
	restore := device.SetClipboard(clip)
	defer restore()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.run(ctx, "sync", "--subscribe")
		done <- err
	}()

	cipher, err := cryptox.NewCipher(state.Key)
	require.NoError(t, err)
	c := client.New(h.url, time.Second)

	// Each attempt copies something new, so a copy taken before the first
	// tick does not become the initial snapshot forever.
	attempt := 0
	require.Eventually(t, func() bool {
		attempt++
		clip.Copy(fmt.Sprintf("from this device %d", attempt))
		latest, err := c.NewestCopy(context.Background(), state.Token)
		if err != nil || latest == nil {
			return false
		}
		plain, err := cipher.Decrypt(latest.Contents)
		return err == nil && strings.HasPrefix(string(plain), "from this device")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sync did not stop")
	}
}
