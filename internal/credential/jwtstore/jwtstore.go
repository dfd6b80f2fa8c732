// Package jwtstore implements a credential backend that seals a secret
// inside a signed JWT claim rather than storing raw ciphertext: each
// secure field's value becomes a claim on an HS256-signed token keyed by
// its account, and the signature is verified on load to detect
// tampering.
package jwtstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tmellor/forge/internal/credential"
)

// claims is the token payload: the account key (so a swapped token can't be
// silently replayed under a different account) and the sealed secret.
type claims struct {
	Account string `json:"account"`
	Secret  string `json:"secret"`
	jwt.RegisteredClaims
}

// Backend is a credential.Backend that signs/verifies secrets as JWTs.
// Tokens are held in-memory, keyed by account, mirroring Base64Backend's
// storage scope; the contribution here is the signed-envelope shape, not
// a new persistence mechanism.
type Backend struct {
	secret []byte

	mu     sync.RWMutex
	tokens map[string]string
}

// New constructs a Backend signing with HS256 using secret, which must be
// at least 32 bytes.
func New(secret []byte) (*Backend, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwtstore: signing secret must be at least 32 bytes")
	}
	return &Backend{secret: secret, tokens: make(map[string]string)}, nil
}

func (b *Backend) Initialize(ctx context.Context) error { return nil }

func (b *Backend) Save(ctx context.Context, account, secret string) error {
	if secret == "" {
		return credential.ErrMissingSecureField
	}

	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Account: account,
		Secret:  secret,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	})

	signed, err := tok.SignedString(b.secret)
	if err != nil {
		return fmt.Errorf("jwtstore: signing token for %q: %w", account, err)
	}

	b.mu.Lock()
	b.tokens[account] = signed
	b.mu.Unlock()
	return nil
}

func (b *Backend) Load(ctx context.Context, account string) (string, error) {
	b.mu.RLock()
	signed, ok := b.tokens[account]
	b.mu.RUnlock()
	if !ok {
		return "", credential.ErrNotFound
	}

	var c claims
	tok, err := jwt.ParseWithClaims(signed, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return b.secret, nil
	})
	if err != nil || !tok.Valid {
		return "", fmt.Errorf("jwtstore: invalid token for %q: %w", account, err)
	}
	if c.Account != account {
		return "", fmt.Errorf("jwtstore: token account mismatch for %q", account)
	}

	return c.Secret, nil
}

func (b *Backend) Delete(ctx context.Context, account string) error {
	b.mu.Lock()
	delete(b.tokens, account)
	b.mu.Unlock()
	return nil
}

var _ credential.Backend = (*Backend)(nil)
