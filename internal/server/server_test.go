// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/cloudcopy/internal/config"
	"codeberg.org/oliverandrich/cloudcopy/internal/repository"
	"codeberg.org/oliverandrich/cloudcopy/internal/services/auth"
	"codeberg.org/oliverandrich/cloudcopy/internal/sse"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "localhost", Port: 8080, MaxBodySize: 1},
		Store:  config.StoreConfig{Backend: config.StoreMemory},
		Auth:   config.AuthConfig{BcryptCost: bcrypt.MinCost},
		SSE:    config.SSEConfig{Heartbeat: time.Minute},
	}
}

func newTestRouter(t *testing.T) *echo.Echo {
	t.Helper()
	cfg := testConfig()
	return NewRouter(cfg, NewServices(cfg, repository.NewMemory(), nil))
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Routes(t *testing.T) {
	e := newTestRouter(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/health"},
		{http.MethodPost, "/authenticate"},
		{http.MethodPost, "/share-copy"},
		{http.MethodGet, "/newest-copy"},
		{http.MethodPost, "/revoke"},
		{http.MethodGet, "/events"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := serve(e, tt.method, tt.path, "")
			assert.NotEqual(t, http.StatusNotFound, rec.Code)
			assert.NotEqual(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
}

func TestRouter_TrailingSlash(t *testing.T) {
	e := newTestRouter(t)

	rec := serve(e, http.MethodPost, "/authenticate/", `{"email":"alice@example.com","password":"hunter2"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Body.String(), 43)

	rec = serve(e, http.MethodGet, "/newest-copy/?token=nope", "")
	assert.Equal(t, "false", rec.Body.String())
}

func TestRouter_BodyLimit(t *testing.T) {
	e := newTestRouter(t)

	huge := `{"token":"x","contents":"` + strings.Repeat("a", 2<<20) + `"}`
	rec := serve(e, http.MethodPost, "/share-copy", huge)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRouter_RequestID(t *testing.T) {
	e := newTestRouter(t)

	rec := serve(e, http.MethodGet, "/health", "")

	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestRouter_Gzip(t *testing.T) {
	e := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(echo.HeaderAcceptEncoding, "gzip")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "gzip", rec.Header().Get(echo.HeaderContentEncoding))
}

func TestSkipEventStream(t *testing.T) {
	e := echo.New()

	events := e.NewContext(httptest.NewRequest(http.MethodGet, "/events", nil), httptest.NewRecorder())
	health := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), httptest.NewRecorder())

	assert.True(t, skipEventStream(events))
	assert.False(t, skipEventStream(health))
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		cfg := testConfig()

		store, closer, err := OpenStore(ctx, cfg)
		require.NoError(t, err)
		assert.IsType(t, &repository.Memory{}, store)
		assert.NoError(t, closer.Close())
	})

	t.Run("sql", func(t *testing.T) {
		cfg := testConfig()
		cfg.Store.Backend = config.StoreSQL
		cfg.Database.DSN = filepath.Join(t.TempDir(), "cloudcopy.db")

		store, closer, err := OpenStore(ctx, cfg)
		require.NoError(t, err)
		defer closer.Close()

		assert.IsType(t, &repository.Repository{}, store)
		assert.NoError(t, store.Ping(ctx))
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := testConfig()
		cfg.Store.Backend = "etcd"

		_, _, err := OpenStore(ctx, cfg)
		assert.ErrorIs(t, err, config.ErrUnknownStore)
	})
}

func TestGracefulShutdown_ClosesEventStreams(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Port = 0
	svc := NewServices(cfg, repository.NewMemory(), nil)
	e := NewRouter(cfg, svc)
	e.HideBanner = true
	e.HidePort = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- startWithGracefulShutdown(ctx, e, cfg, svc.Hub)
	}()
	require.Eventually(t, func() bool {
		return e.ListenerAddr() != nil
	}, 2*time.Second, 10*time.Millisecond)

	token, err := svc.Auth.Authenticate(ctx, auth.Credentials{Email: "alice@example.com", Password: "hunter2"})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "http://"+e.ListenerAddr().String()+"/events", nil)
	require.NoError(t, err)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := sse.NewReader(resp.Body)
	ev, err := reader.Next()
	require.NoError(t, err)
	require.Equal(t, sse.EventConnected, ev.Name)

	started := time.Now()
	cancel()

	ev, err = reader.Next()
	require.NoError(t, err)
	assert.Equal(t, sse.EventShutdown, ev.Name)

	select {
	case err := <-done:
		require.NoError(t, err)
		assert.Less(t, time.Since(started), 5*time.Second, "shutdown should not wait for its timeout")
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}
