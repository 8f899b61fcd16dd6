// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package client talks to a CloudCopy server on behalf of a device.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/oliverandrich/cloudcopy/internal/sse"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNetwork            = errors.New("network failure")
	// ErrRejected is a 4xx answer other than 401. Retrying the same request
	// gets the same answer.
	ErrRejected = errors.New("request rejected")
)

// maxResponseSize bounds what is read from a response body.
const maxResponseSize = 8 << 20

// Copy is the newest clipboard value of the account. Contents is still
// encrypted.
type Copy struct {
	Contents  string
	Timestamp time.Time
}

// Client is safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL string
}

// New creates a client for the server at baseURL. A zero timeout means
// requests never time out.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Credentials are sent to /authenticate. A non-empty Token is reaffirmed
// instead of logging in with Email and Password.
type Credentials struct {
	Token    string `json:"token,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// Authenticate exchanges credentials for a bearer token.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	body, err := c.postJSON(ctx, "/authenticate", creds)
	if err != nil {
		return "", err
	}

	switch body {
	case "invalid token":
		return "", ErrInvalidToken
	case "false", "":
		return "", ErrInvalidCredentials
	}
	return body, nil
}

type shareCopyRequest struct {
	Token    string `json:"token"`
	Contents string `json:"contents"`
}

// ShareCopy uploads an encrypted clipboard value.
func (c *Client) ShareCopy(ctx context.Context, token, contents string) error {
	body, err := c.postJSON(ctx, "/share-copy", shareCopyRequest{Token: token, Contents: contents})
	if err != nil {
		return err
	}
	if body != "true" {
		return ErrInvalidToken
	}
	return nil
}

type newestCopyResponse struct {
	CurrentCopy string `json:"current_copy"`
	Timestamp   string `json:"timestamp"`
}

// NewestCopy fetches the account's clipboard. It returns nil, nil when the
// server answers "false": nothing was shared yet or the token is not valid.
func (c *Client) NewestCopy(ctx context.Context, token string) (*Copy, error) {
	target := c.baseURL + "/newest-copy?" + url.Values{"token": {token}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if body == "false" {
		return nil, nil
	}

	var resp newestCopyResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed newest copy: %w", ErrNetwork, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, resp.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed timestamp: %w", ErrNetwork, err)
	}

	return &Copy{Contents: resp.CurrentCopy, Timestamp: ts}, nil
}

// Revoke invalidates token on the server, or every token of the account
// when all is set.
func (c *Client) Revoke(ctx context.Context, token string, all bool) error {
	target := c.baseURL + "/revoke"
	if all {
		target += "?all=true"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	body, err := c.do(req)
	if err != nil {
		return err
	}
	if body != "true" {
		return ErrInvalidToken
	}
	return nil
}

// Subscribe streams change notifications and calls onCopy for every copy
// event until ctx ends or the stream breaks.
func (c *Client) Subscribe(ctx context.Context, token string, onCopy func()) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/event-stream")

	// The stream is long-lived, so the request timeout does not apply.
	stream := &http.Client{Transport: c.http.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrNetwork, resp.StatusCode)
	}

	reader := sse.NewReader(resp.Body)
	for {
		ev, err := reader.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: event stream closed", ErrNetwork)
			}
			return fmt.Errorf("%w: %w", ErrNetwork, err)
		}

		switch ev.Name {
		case sse.EventConnected:
			slog.Debug("events_connected")
		case sse.EventCopy:
			onCopy()
		case sse.EventShutdown:
			slog.Info("events_server_shutdown")
		}
	}
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// do sends req and returns the trimmed body. A 401 is ErrInvalidToken, other
// 4xx answers wrap ErrRejected. Transport errors and the remaining non-2xx
// answers wrap ErrNetwork.
func (c *Client) do(req *http.Request) (string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return "", ErrInvalidToken
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return "", fmt.Errorf("%w: %s %s: status %d", ErrRejected, req.Method, req.URL.Path, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s %s: status %d", ErrNetwork, req.Method, req.URL.Path, resp.StatusCode)
	}

	return strings.TrimSpace(string(data)), nil
}
