// Package credential implements the credential manager: a pluggable store
// for secure profile fields, addressed by a stable account key, with
// exactly one implementation active per process.
package credential

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrMissingSecureField is returned by Save when asked to persist an
// empty or absent secret.
var ErrMissingSecureField = errors.New("credential: secret is empty or absent")

// ErrNotFound is returned by Load when no credential exists for the
// account key.
var ErrNotFound = errors.New("credential: not found")

// Backend is the capability set a Credential Manager implementation
// exposes. cred at this boundary is an opaque string; what it encodes is
// entirely up to the implementation.
type Backend interface {
	// Initialize is invoked once before first use; implementations with no
	// setup work may no-op. It exists so backends with start-up work have
	// a defined hook (badgerstore runs a value-log GC pass there).
	Initialize(ctx context.Context) error
	Load(ctx context.Context, account string) (string, error)
	Save(ctx context.Context, account, secret string) error
	Delete(ctx context.Context, account string) error
}

// AccountKey builds the stable credential account key from a profile type,
// profile name, and secure field name. The format is fixed across process
// invocations; every Backend implementation must preserve it.
func AccountKey(profileType, profileName, fieldName string) string {
	return fmt.Sprintf("%s_%s_%s", profileType, profileName, fieldName)
}

// Base64Backend is the default credential backend: a symmetric base64
// passthrough with no actual secrecy, an inert placeholder rather than a
// functional secret store. Storage is in-memory only; it does not persist
// across process invocations. Hosts that need real secrecy swap in
// badgerstore or jwtstore.
type Base64Backend struct {
	store map[string]string
}

// NewBase64Backend constructs the default backend.
func NewBase64Backend() *Base64Backend {
	return &Base64Backend{store: make(map[string]string)}
}

func (b *Base64Backend) Initialize(ctx context.Context) error { return nil }

func (b *Base64Backend) Load(ctx context.Context, account string) (string, error) {
	enc, ok := b.store[account]
	if !ok {
		return "", ErrNotFound
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("credential: corrupt stored value for %q: %w", account, err)
	}
	return string(raw), nil
}

func (b *Base64Backend) Save(ctx context.Context, account, secret string) error {
	if secret == "" {
		return ErrMissingSecureField
	}
	b.store[account] = base64.StdEncoding.EncodeToString([]byte(secret))
	return nil
}

func (b *Base64Backend) Delete(ctx context.Context, account string) error {
	delete(b.store, account)
	return nil
}
