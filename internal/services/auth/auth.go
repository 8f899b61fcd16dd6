// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"codeberg.org/oliverandrich/cloudcopy/internal/config"
	"codeberg.org/oliverandrich/cloudcopy/internal/models"
	"codeberg.org/oliverandrich/cloudcopy/internal/repository"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExhausted     = errors.New("could not mint a unique token")
)

// Mailer delivers the optional welcome mail after signup.
type Mailer interface {
	SendWelcome(ctx context.Context, to string) error
}

// Service manages accounts and their bearer tokens.
type Service struct {
	store    repository.Store
	config   *config.AuthConfig
	mailer   Mailer
	now      func() time.Time
	newToken func() (string, error)
}

// NewService creates the identity service. mailer may be nil.
func NewService(store repository.Store, cfg *config.AuthConfig, mailer Mailer) *Service {
	return &Service{
		store:    store,
		config:   cfg,
		mailer:   mailer,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: GenerateToken,
	}
}

// Credentials is what a device presents to /authenticate. A non-empty
// Token takes precedence over Email and Password.
type Credentials struct {
	Token    string
	Email    string
	Password string
}

// NormalizeEmail trims and lower-cases an address so lookups are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authenticate reaffirms an existing token, signs up an unknown email, or
// logs in a known one. It returns the bearer token to hand to the device.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	if creds.Token != "" {
		token, err := s.Resolve(ctx, creds.Token)
		if err != nil {
			return "", err
		}
		slog.Info("token_reaffirmed", "email", token.Email)
		return creds.Token, nil
	}

	email := NormalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		slog.Warn("login_failed", "email", email, "reason", "missing_credentials")
		return "", ErrInvalidCredentials
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		slog.Warn("login_failed", "email", email, "reason", "invalid_email")
		return "", ErrInvalidCredentials
	}

	account, err := s.store.GetAccount(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return s.signup(ctx, email, creds.Password)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get account: %w", err)
	}

	return s.login(ctx, account, creds.Password)
}

func (s *Service) signup(ctx context.Context, email, password string) (string, error) {
	hash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		// Longer than bcrypt accepts.
		slog.Warn("signup_failed", "email", email, "reason", err.Error())
		return "", ErrInvalidCredentials
	}

	account := &models.Account{
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	err = s.store.CreateAccount(ctx, account)
	if errors.Is(err, repository.ErrExists) {
		// A concurrent signup won; treat this request as a login.
		existing, getErr := s.store.GetAccount(ctx, email)
		if getErr != nil {
			return "", fmt.Errorf("failed to get account: %w", getErr)
		}
		return s.login(ctx, existing, password)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create account: %w", err)
	}

	token, err := s.mint(ctx, email)
	if err != nil {
		return "", err
	}

	slog.Info("signup_success", "email", email)

	if s.mailer != nil {
		if err := s.mailer.SendWelcome(ctx, email); err != nil {
			slog.Error("welcome_mail_failed", "email", email, "error", err)
		}
	}

	return token, nil
}

func (s *Service) login(ctx context.Context, account *models.Account, password string) (string, error) {
	if !CheckPassword(password, account.PasswordHash) {
		slog.Warn("login_failed", "email", account.Email, "reason", "invalid_password")
		return "", ErrInvalidCredentials
	}

	token, err := s.mint(ctx, account.Email)
	if err != nil {
		return "", err
	}

	slog.Info("login_success", "email", account.Email)
	return token, nil
}

// mint issues a new token for email. Candidates are checked and inserted
// with insert-if-absent, so a collision is retried rather than shared.
func (s *Service) mint(ctx context.Context, email string) (string, error) {
	for range maxMintAttempts {
		value, err := s.newToken()
		if err != nil {
			return "", err
		}
		hash := HashToken(value)

		exists, err := s.store.TokenExists(ctx, hash)
		if err != nil {
			return "", fmt.Errorf("failed to check token: %w", err)
		}
		if exists {
			slog.Warn("token_collision", "email", email)
			continue
		}

		now := s.now()
		token := &models.Token{
			Hash:      hash,
			Email:     email,
			CreatedAt: now,
		}
		if s.config.TokenTTL > 0 {
			token.ExpiresAt = now.Add(s.config.TokenTTL)
		}

		err = s.store.CreateToken(ctx, token)
		if errors.Is(err, repository.ErrExists) {
			slog.Warn("token_collision", "email", email)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create token: %w", err)
		}

		return value, nil
	}

	return "", ErrTokenExhausted
}

// Resolve returns the stored token for a bearer value if it is still active.
func (s *Service) Resolve(ctx context.Context, value string) (*models.Token, error) {
	if value == "" {
		return nil, ErrInvalidToken
	}

	token, err := s.store.GetToken(ctx, HashToken(value))
	if errors.Is(err, repository.ErrNotFound) {
		slog.Warn("token_invalid", "reason", "unknown")
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	if token.Revoked() {
		slog.Warn("token_invalid", "email", token.Email, "reason", "revoked")
		return nil, ErrInvalidToken
	}
	if token.Expired(s.now()) {
		slog.Warn("token_invalid", "email", token.Email, "reason", "expired")
		return nil, ErrInvalidToken
	}

	return token, nil
}

// Revoke invalidates one bearer token.
func (s *Service) Revoke(ctx context.Context, value string) error {
	token, err := s.Resolve(ctx, value)
	if err != nil {
		return err
	}

	if err := s.store.RevokeToken(ctx, token.Hash, s.now()); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	slog.Info("token_revoked", "email", token.Email)
	return nil
}

// RevokeAll invalidates every active token of the account that owns value,
// value included. It returns the number of tokens revoked.
func (s *Service) RevokeAll(ctx context.Context, value string) (int, error) {
	token, err := s.Resolve(ctx, value)
	if err != nil {
		return 0, err
	}

	tokens, err := s.store.ListTokens(ctx, token.Email)
	if err != nil {
		return 0, fmt.Errorf("failed to list tokens: %w", err)
	}

	now := s.now()
	revoked := 0
	for _, t := range tokens {
		if !t.Active(now) {
			continue
		}
		if err := s.store.RevokeToken(ctx, t.Hash, now); err != nil {
			return revoked, fmt.Errorf("failed to revoke token: %w", err)
		}
		revoked++
	}

	slog.Info("token_revoked", "email", token.Email, "count", revoked)
	return revoked, nil
}
