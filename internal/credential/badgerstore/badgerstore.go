// Package badgerstore implements a credential backend that persists
// secrets at rest, encrypted with NaCl secretbox, inside an embedded
// Badger key-value store.
package badgerstore

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	badger "github.com/dgraph-io/badger/v4"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/tmellor/forge/internal/credential"
)

const nonceSize = 24

// Backend is a credential.Backend backed by a Badger database, with
// values sealed under secretbox using a caller-supplied 32-byte key.
type Backend struct {
	db  *badger.DB
	key [32]byte
}

// Open opens (creating if absent) a Badger database at dir, sealing all
// stored secrets with key. The key is the caller's responsibility to
// protect; a typical host derives it from an OS keyring entry or an
// operator-supplied passphrase, outside this package's scope.
func Open(dir string, key [32]byte) (*Backend, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open %q: %w", dir, err)
	}
	return &Backend{db: db, key: key}, nil
}

// Close releases the underlying Badger database.
func (b *Backend) Close() error { return b.db.Close() }

// Initialize runs Badger's value-log garbage collection once, giving a
// long-lived process a clean starting state; it is a no-op on failure
// since GC finding nothing to collect is the common case, not an error.
func (b *Backend) Initialize(ctx context.Context) error {
	_ = b.db.RunValueLogGC(0.5)
	return nil
}

func (b *Backend) Load(ctx context.Context, account string) (string, error) {
	var plain []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(account))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return credential.ErrNotFound
			}
			return err
		}
		sealed, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if len(sealed) < nonceSize {
			return fmt.Errorf("badgerstore: stored value for %q is truncated", account)
		}
		var nonce [nonceSize]byte
		copy(nonce[:], sealed[:nonceSize])

		opened, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &b.key)
		if !ok {
			return fmt.Errorf("badgerstore: failed to decrypt value for %q", account)
		}
		plain = opened
		return nil
	})
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (b *Backend) Save(ctx context.Context, account, secret string) error {
	if secret == "" {
		return credential.ErrMissingSecureField
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("badgerstore: generating nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(secret), &nonce, &b.key)

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(account), sealed)
	})
}

func (b *Backend) Delete(ctx context.Context, account string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(account))
	})
}

var _ credential.Backend = (*Backend)(nil)
