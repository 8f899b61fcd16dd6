// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package syncloop keeps a device clipboard in step with the account's
// server-side copy. Local changes are pushed, newer remote copies pulled.
package syncloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/cloudcopy/internal/client"
)

// Defaults used when Options leaves a duration at zero.
const (
	DefaultInterval = 2 * time.Second
	DefaultCooldown = 60 * time.Second
)

// Clipboard is the device clipboard the loop reads and writes.
type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

// Remote is the server side of the loop.
type Remote interface {
	ShareCopy(ctx context.Context, token, contents string) error
	NewestCopy(ctx context.Context, token string) (*client.Copy, error)
}

// Cipher seals copies before they leave the device and opens pulled ones.
type Cipher interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
}

// Options tune a Loop. Zero durations fall back to the defaults.
type Options struct {
	// Interval is the pause between ticks.
	Interval time.Duration
	// Cooldown is the pause after a network failure.
	Cooldown time.Duration
	// OnError receives failures the user should hear about, such as a copy
	// that does not decrypt with this device's key.
	OnError func(error)
}

// Loop is not safe for concurrent use apart from Nudge.
type Loop struct {
	clipboard Clipboard
	remote    Remote
	cipher    Cipher
	token     string
	opts      Options
	wake      chan struct{}

	// snapshot is the last clipboard text this loop pushed or applied.
	snapshot    string
	lastApplied time.Time
	started     bool
}

// New creates a loop for the account identified by token. The loop takes
// its initial snapshot on the first successful clipboard read.
func New(clip Clipboard, remote Remote, cipher Cipher, token string, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	return &Loop{
		clipboard: clip,
		remote:    remote,
		cipher:    cipher,
		token:     token,
		opts:      opts,
		wake:      make(chan struct{}, 1),
	}
}

// Nudge cuts the current wait short. Repeated nudges before the next tick
// collapse into one.
func (l *Loop) Nudge() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// LastApplied returns the server timestamp of the last applied remote copy.
func (l *Loop) LastApplied() time.Time {
	return l.lastApplied
}

// Run ticks until ctx ends, then returns nil. A rejected token ends the
// loop with client.ErrInvalidToken. Network failures pause for the cooldown.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("sync_started", "interval", l.opts.Interval, "cooldown", l.opts.Cooldown)

	for {
		wait := l.opts.Interval
		wakeable := true

		err := l.Tick(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, client.ErrInvalidToken):
			slog.Error("sync_stopped", "reason", "invalid_token")
			return err
		case errors.Is(err, client.ErrNetwork):
			slog.Warn("sync_network_failure", "error", err, "cooldown", l.opts.Cooldown)
			wait = l.opts.Cooldown
			wakeable = false
		default:
			slog.Error("sync_tick_failed", "error", err)
			l.report(err)
		}

		if !l.sleep(ctx, wait, wakeable) {
			slog.Info("sync_stopped", "reason", "cancelled")
			return nil
		}
	}
}

// Tick performs one round: push the local clipboard if it changed since the
// last push or apply, otherwise pull and apply a strictly newer remote copy.
func (l *Loop) Tick(ctx context.Context) error {
	text, err := l.clipboard.Read()
	if err != nil {
		slog.Warn("clipboard_read_failed", "error", err)
		return nil
	}

	if !l.started {
		l.snapshot = text
		l.started = true
	} else if text != l.snapshot {
		return l.push(ctx, text)
	}

	return l.pull(ctx)
}

func (l *Loop) push(ctx context.Context, text string) error {
	ciphertext, err := l.cipher.Encrypt([]byte(text))
	if err != nil {
		return fmt.Errorf("failed to encrypt clipboard: %w", err)
	}
	err = l.remote.ShareCopy(ctx, l.token, ciphertext)
	if errors.Is(err, client.ErrRejected) {
		// The server will never take this copy; stop offering it so the
		// next tick pulls again.
		l.snapshot = text
		slog.Error("copy_rejected", "size", len(text), "error", err)
		l.report(fmt.Errorf("clipboard not shared: %w", err))
		return nil
	}
	if err != nil {
		return err
	}

	l.snapshot = text
	slog.Debug("copy_pushed", "size", len(text))
	return nil
}

func (l *Loop) pull(ctx context.Context) error {
	remote, err := l.remote.NewestCopy(ctx, l.token)
	if err != nil {
		return err
	}
	if remote == nil || !remote.Timestamp.After(l.lastApplied) {
		return nil
	}

	plaintext, err := l.cipher.Decrypt(remote.Contents)
	if err != nil {
		// Recorded so the same copy is not reported every tick.
		l.lastApplied = remote.Timestamp
		slog.Error("copy_decrypt_failed", "timestamp", remote.Timestamp, "error", err)
		l.report(fmt.Errorf("copy from %s: %w", remote.Timestamp.Format(time.RFC3339), err))
		return nil
	}

	text := string(plaintext)
	if text == l.snapshot {
		return nil
	}
	if err := l.clipboard.Write(text); err != nil {
		slog.Error("clipboard_write_failed", "error", err)
		return nil
	}

	l.snapshot = text
	l.lastApplied = remote.Timestamp
	slog.Debug("copy_applied", "timestamp", remote.Timestamp, "size", len(text))
	return nil
}

func (l *Loop) report(err error) {
	if l.opts.OnError != nil {
		l.opts.OnError(err)
	}
}

// sleep waits for d and reports false once ctx is done.
func (l *Loop) sleep(ctx context.Context, d time.Duration, wakeable bool) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	wake := l.wake
	if !wakeable {
		wake = nil
	}

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-wake:
		return true
	}
}
