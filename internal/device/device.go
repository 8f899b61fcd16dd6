// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package device implements the commands of the cloudcopy device agent.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/cloudcopy/internal/client"
	"codeberg.org/oliverandrich/cloudcopy/internal/clipboard"
	"codeberg.org/oliverandrich/cloudcopy/internal/config"
	"codeberg.org/oliverandrich/cloudcopy/internal/cryptox"
	"codeberg.org/oliverandrich/cloudcopy/internal/devicestate"
	"codeberg.org/oliverandrich/cloudcopy/internal/logging"
	"codeberg.org/oliverandrich/cloudcopy/internal/syncloop"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

var (
	ErrNoEmail       = errors.New("an email address is required")
	ErrLoginRejected = errors.New("wrong email or password")
	ErrLoggedOut     = errors.New("not logged in, run login first")
	ErrTokenRejected = errors.New("the server rejected the stored token, run login again")
)

// Test seams.
var (
	readPassword = func() ([]byte, error) {
		return term.ReadPassword(int(os.Stdin.Fd()))
	}
	newClipboard = func() (syncloop.Clipboard, error) {
		return clipboard.NewSystem()
	}
)

// NewCommand returns the root command with all subcommands.
func NewCommand(version string) *cli.Command {
	return &cli.Command{
		Name:    "cloudcopy",
		Usage:   "Share the clipboard between your devices",
		Version: version,
		Flags:   config.DeviceFlags(),
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in or sign up and store the token on this device",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "Account email, defaults to the stored one"},
					&cli.StringFlag{Name: "password", Usage: "Account password, prompted for when empty"},
				},
				Action: Login,
			},
			{
				Name:   "sync",
				Usage:  "Keep the clipboard in sync until interrupted",
				Action: Sync,
			},
			{
				Name:   "status",
				Usage:  "Show the stored login and whether the token is still valid",
				Action: Status,
			},
			{
				Name:  "logout",
				Usage: "Revoke the token and forget the login",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "Revoke the tokens of all devices of the account"},
				},
				Action: Logout,
			},
		},
	}
}

type env struct {
	cfg    *config.DeviceConfig
	store  *devicestate.Store
	client *client.Client
	out    io.Writer
}

func setup(cmd *cli.Command) (*env, error) {
	cfg := config.NewDeviceFromCLI(cmd)
	logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	store, err := devicestate.Open(cfg.StatePath)
	if err != nil {
		return nil, err
	}

	out := cmd.Root().Writer
	if out == nil {
		out = os.Stdout
	}

	return &env{
		cfg:    cfg,
		store:  store,
		client: client.New(cfg.ServerURL, cfg.HTTPTimeout),
		out:    out,
	}, nil
}

// Login authenticates with email and password, derives the content key
// and stores both with the token.
func Login(ctx context.Context, cmd *cli.Command) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.store.Close()

	email := strings.TrimSpace(cmd.String("email"))
	if email == "" {
		if email, err = e.store.Email(ctx); err != nil {
			return err
		}
	}
	if email == "" {
		return ErrNoEmail
	}

	password := cmd.String("password")
	if password == "" {
		fmt.Fprintf(e.out, "Password for %s: ", email)
		raw, err := readPassword()
		fmt.Fprintln(e.out)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
	}

	token, err := e.client.Authenticate(ctx, client.Credentials{Email: email, Password: password})
	if errors.Is(err, client.ErrInvalidCredentials) {
		return ErrLoginRejected
	}
	if err != nil {
		return err
	}

	err = e.store.Save(ctx, &devicestate.State{
		Email: email,
		Token: token,
		Key:   cryptox.DeriveKey(password),
	})
	if err != nil {
		return err
	}

	slog.Info("login_success", "email", email, "server", e.cfg.ServerURL)
	fmt.Fprintf(e.out, "Logged in as %s\n", email)
	return nil
}

// Sync reaffirms the stored token and runs the sync loop against the
// system clipboard until SIGINT or SIGTERM.
func Sync(ctx context.Context, cmd *cli.Command) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.store.Close()

	state, err := e.store.Load(ctx)
	if errors.Is(err, devicestate.ErrNotLoggedIn) {
		return ErrLoggedOut
	}
	if err != nil {
		return err
	}

	_, err = e.client.Authenticate(ctx, client.Credentials{Token: state.Token})
	switch {
	case errors.Is(err, client.ErrInvalidToken):
		return e.dropToken(ctx)
	case errors.Is(err, client.ErrNetwork):
		// The loop retries after its cooldown.
		slog.Warn("server_unreachable", "server", e.cfg.ServerURL, "error", err)
	case err != nil:
		return err
	}

	cipher, err := cryptox.NewCipher(state.Key)
	if err != nil {
		return err
	}
	clip, err := newClipboard()
	if err != nil {
		return err
	}

	loop := syncloop.New(clip, e.client, cipher, state.Token, syncloop.Options{
		Interval: e.cfg.Interval,
		Cooldown: e.cfg.Cooldown,
		OnError: func(err error) {
			fmt.Fprintf(e.out, "cloudcopy: %v\n", err)
		},
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if e.cfg.Subscribe {
		go subscribe(ctx, e.client, state.Token, loop, e.cfg.Cooldown)
	}

	fmt.Fprintf(e.out, "Syncing clipboard of %s\n", state.Email)
	if err := loop.Run(ctx); errors.Is(err, client.ErrInvalidToken) {
		return e.dropToken(context.WithoutCancel(ctx))
	} else if err != nil {
		return err
	}
	return nil
}

// subscribe nudges the loop on every copy event and reconnects after the
// cooldown when the stream breaks.
func subscribe(ctx context.Context, c *client.Client, token string, loop *syncloop.Loop, cooldown time.Duration) {
	for {
		err := c.Subscribe(ctx, token, loop.Nudge)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, client.ErrInvalidToken) {
			// The loop reports this on its next push.
			slog.Warn("subscription_stopped", "reason", "invalid_token")
			return
		}
		slog.Warn("subscription_lost", "error", err, "retry_in", cooldown)

		select {
		case <-ctx.Done():
			return
		case <-time.After(cooldown):
		}
	}
}

func (e *env) dropToken(ctx context.Context) error {
	if err := e.store.ClearToken(ctx); err != nil {
		return err
	}
	return ErrTokenRejected
}

// Status prints the stored login and checks the token with the server.
func Status(ctx context.Context, cmd *cli.Command) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.store.Close()

	state, err := e.store.Load(ctx)
	if errors.Is(err, devicestate.ErrNotLoggedIn) {
		fmt.Fprintln(e.out, "Not logged in")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "Email:  %s\nServer: %s\n", state.Email, e.cfg.ServerURL)

	_, err = e.client.Authenticate(ctx, client.Credentials{Token: state.Token})
	switch {
	case err == nil:
		fmt.Fprintln(e.out, "Token:  valid")
	case errors.Is(err, client.ErrInvalidToken):
		fmt.Fprintln(e.out, "Token:  rejected, run login again")
	case errors.Is(err, client.ErrNetwork):
		fmt.Fprintln(e.out, "Token:  unknown, server unreachable")
	default:
		return err
	}
	return nil
}

// Logout revokes the token on the server, best effort, and clears the
// local state.
func Logout(ctx context.Context, cmd *cli.Command) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.store.Close()

	state, err := e.store.Load(ctx)
	switch {
	case err == nil:
		if revokeErr := e.client.Revoke(ctx, state.Token, cmd.Bool("all")); revokeErr != nil {
			slog.Warn("revoke_failed", "error", revokeErr)
		}
	case !errors.Is(err, devicestate.ErrNotLoggedIn):
		return err
	}

	if err := e.store.Clear(ctx); err != nil {
		return err
	}

	fmt.Fprintln(e.out, "Logged out")
	return nil
}
