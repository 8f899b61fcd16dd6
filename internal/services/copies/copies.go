// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package copies keeps the latest encrypted clipboard value per account.
package copies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/cloudcopy/internal/models"
	"codeberg.org/oliverandrich/cloudcopy/internal/repository"
	"codeberg.org/oliverandrich/cloudcopy/internal/sse"
)

var (
	ErrNoClipboard   = errors.New("no clipboard state")
	ErrEmptyContents = errors.New("empty contents")
)

// TimestampFormat is the wire format of clipboard timestamps.
const TimestampFormat = time.RFC3339Nano

// TokenResolver maps a bearer token to its active stored token.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*models.Token, error)
}

// Publisher receives change notifications after a push.
type Publisher interface {
	Publish(email, message string) int
}

// Service stores the newest encrypted copy per account.
type Service struct {
	store     repository.Store
	tokens    TokenResolver
	publisher Publisher
	now       func() time.Time
}

// NewService creates the clipboard store. publisher may be nil.
func NewService(store repository.Store, tokens TokenResolver, publisher Publisher) *Service {
	return &Service{
		store:     store,
		tokens:    tokens,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Push replaces the account's clipboard with ciphertext and stamps it with
// the server clock. The previous value is discarded whatever its timestamp.
func (s *Service) Push(ctx context.Context, token, ciphertext string) (*models.ClipboardState, error) {
	owner, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if ciphertext == "" {
		return nil, ErrEmptyContents
	}

	state := &models.ClipboardState{
		Email:      owner.Email,
		Ciphertext: ciphertext,
		UpdatedAt:  s.now(),
	}
	if err := s.store.PutClipboard(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to store clipboard: %w", err)
	}

	notified := 0
	if s.publisher != nil {
		notified = s.publisher.Publish(owner.Email, sse.FormatEvent(sse.EventCopy, state.UpdatedAt.Format(TimestampFormat)))
	}

	slog.Debug("copy_shared", "email", owner.Email, "size", len(ciphertext), "notified", notified)
	return state, nil
}

// Pull returns the account's current clipboard state.
func (s *Service) Pull(ctx context.Context, token string) (*models.ClipboardState, error) {
	owner, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	state, err := s.store.GetClipboard(ctx, owner.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoClipboard
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clipboard: %w", err)
	}

	return state, nil
}
