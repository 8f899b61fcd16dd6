// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"codeberg.org/oliverandrich/cloudcopy/internal/models"
)

// Memory is a process-local Store. State is lost on restart.
type Memory struct {
	accounts   map[string]models.Account
	tokens     map[string]models.Token
	clipboards map[string]models.ClipboardState
	mu         sync.RWMutex
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		accounts:   make(map[string]models.Account),
		tokens:     make(map[string]models.Token),
		clipboards: make(map[string]models.ClipboardState),
	}
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error {
	return nil
}

func (m *Memory) CreateAccount(_ context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[account.Email]; ok {
		return ErrExists
	}
	m.accounts[account.Email] = *account
	return nil
}

func (m *Memory) GetAccount(_ context.Context, email string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.accounts[email]
	if !ok {
		return nil, ErrNotFound
	}
	return &account, nil
}

func (m *Memory) TokenExists(_ context.Context, hash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.tokens[hash]
	return ok, nil
}

func (m *Memory) CreateToken(_ context.Context, token *models.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tokens[token.Hash]; ok {
		return ErrExists
	}
	m.tokens[token.Hash] = *token
	return nil
}

func (m *Memory) GetToken(_ context.Context, hash string) (*models.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	token, ok := m.tokens[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return &token, nil
}

func (m *Memory) RevokeToken(_ context.Context, hash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok := m.tokens[hash]
	if !ok {
		return ErrNotFound
	}
	if token.RevokedAt.IsZero() {
		token.RevokedAt = at.UTC()
		m.tokens[hash] = token
	}
	return nil
}

func (m *Memory) ListTokens(_ context.Context, email string) ([]models.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tokens := make([]models.Token, 0)
	for _, token := range m.tokens {
		if token.Email == email {
			tokens = append(tokens, token)
		}
	}
	slices.SortFunc(tokens, func(a, b models.Token) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.Hash, b.Hash))
	})
	return tokens, nil
}

func (m *Memory) PutClipboard(_ context.Context, state *models.ClipboardState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clipboards[state.Email] = *state
	return nil
}

func (m *Memory) GetClipboard(_ context.Context, email string) (*models.ClipboardState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.clipboards[email]
	if !ok {
		return nil, ErrNotFound
	}
	return &state, nil
}
