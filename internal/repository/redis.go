// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"codeberg.org/oliverandrich/cloudcopy/internal/models"
	"github.com/redis/go-redis/v9"
)

// Redis implements Store with one JSON value per record:
//
//	cloudcopy:account:<email>    account
//	cloudcopy:token:<hash>       token
//	cloudcopy:tokens:<email>     set of token hashes
//	cloudcopy:clipboard:<email>  clipboard state
type Redis struct {
	client *redis.Client
	prefix string
}

var _ Store = (*Redis)(nil)

// NewRedis wraps a connected client. An empty prefix defaults to "cloudcopy".
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "cloudcopy"
	}
	return &Redis{client: client, prefix: prefix}
}

type redisAccount struct {
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
}

type redisToken struct {
	Email     string `json:"email"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
	RevokedAt int64  `json:"revoked_at,omitempty"`
}

type redisClipboard struct {
	Ciphertext string `json:"ciphertext"`
	UpdatedAt  int64  `json:"updated_at"`
}

func (r *Redis) accountKey(email string) string   { return r.prefix + ":account:" + email }
func (r *Redis) tokenKey(hash string) string      { return r.prefix + ":token:" + hash }
func (r *Redis) tokenSetKey(email string) string  { return r.prefix + ":tokens:" + email }
func (r *Redis) clipboardKey(email string) string { return r.prefix + ":clipboard:" + email }

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func timeOrZero(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return fromUnix(n)
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// CreateAccount uses SETNX, so the first registration of an email wins.
func (r *Redis) CreateAccount(ctx context.Context, account *models.Account) error {
	data, err := json.Marshal(redisAccount{
		PasswordHash: account.PasswordHash,
		CreatedAt:    toUnix(account.CreatedAt),
	})
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, r.accountKey(account.Email), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrExists
	}
	return nil
}

func (r *Redis) GetAccount(ctx context.Context, email string) (*models.Account, error) {
	var rec redisAccount
	if err := r.getJSON(ctx, r.accountKey(email), &rec); err != nil {
		return nil, err
	}
	return &models.Account{
		Email:        email,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    fromUnix(rec.CreatedAt),
	}, nil
}

func (r *Redis) TokenExists(ctx context.Context, hash string) (bool, error) {
	n, err := r.client.Exists(ctx, r.tokenKey(hash)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateToken writes the token and its account set membership in one
// MULTI/EXEC. A token key created concurrently aborts the transaction.
func (r *Redis) CreateToken(ctx context.Context, token *models.Token) error {
	data, err := json.Marshal(tokenRecord(token))
	if err != nil {
		return err
	}
	key := r.tokenKey(token.Hash)

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, r.tokenSetKey(token.Email), token.Hash)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrExists
	}
	return err
}

func (r *Redis) GetToken(ctx context.Context, hash string) (*models.Token, error) {
	var rec redisToken
	if err := r.getJSON(ctx, r.tokenKey(hash), &rec); err != nil {
		return nil, err
	}
	token := rec.model(hash)
	return &token, nil
}

// RevokeToken updates the token under WATCH so concurrent revocations keep
// the first timestamp.
func (r *Redis) RevokeToken(ctx context.Context, hash string, at time.Time) error {
	key := r.tokenKey(hash)

	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var rec redisToken
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("failed to decode token: %w", err)
		}
		if rec.RevokedAt != 0 {
			return nil
		}
		rec.RevokedAt = at.UnixNano()

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		})
		return err
	}, key)
}

// ListTokens reads the account set and sorts by creation time. Hashes
// whose token key is gone are skipped.
func (r *Redis) ListTokens(ctx context.Context, email string) ([]models.Token, error) {
	hashes, err := r.client.SMembers(ctx, r.tokenSetKey(email)).Result()
	if err != nil {
		return nil, err
	}

	tokens := make([]models.Token, 0, len(hashes))
	for _, hash := range hashes {
		token, err := r.GetToken(ctx, hash)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}
	slices.SortFunc(tokens, func(a, b models.Token) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.Hash, b.Hash))
	})
	return tokens, nil
}

// PutClipboard replaces the state with a single SET.
func (r *Redis) PutClipboard(ctx context.Context, state *models.ClipboardState) error {
	data, err := json.Marshal(redisClipboard{
		Ciphertext: state.Ciphertext,
		UpdatedAt:  toUnix(state.UpdatedAt),
	})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.clipboardKey(state.Email), data, 0).Err()
}

func (r *Redis) GetClipboard(ctx context.Context, email string) (*models.ClipboardState, error) {
	var rec redisClipboard
	if err := r.getJSON(ctx, r.clipboardKey(email), &rec); err != nil {
		return nil, err
	}
	return &models.ClipboardState{
		Email:      email,
		Ciphertext: rec.Ciphertext,
		UpdatedAt:  fromUnix(rec.UpdatedAt),
	}, nil
}

func (r *Redis) getJSON(ctx context.Context, key string, dest any) error {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func tokenRecord(token *models.Token) redisToken {
	return redisToken{
		Email:     token.Email,
		CreatedAt: toUnix(token.CreatedAt),
		ExpiresAt: unixOrZero(token.ExpiresAt),
		RevokedAt: unixOrZero(token.RevokedAt),
	}
}

func (rec redisToken) model(hash string) models.Token {
	return models.Token{
		Hash:      hash,
		Email:     rec.Email,
		CreatedAt: fromUnix(rec.CreatedAt),
		ExpiresAt: timeOrZero(rec.ExpiresAt),
		RevokedAt: timeOrZero(rec.RevokedAt),
	}
}
