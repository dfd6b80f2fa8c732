package bootstrap

import (
	"fmt"
	"os"

	"github.com/tmellor/forge/internal/credential"
	"github.com/tmellor/forge/internal/credential/badgerstore"
	"github.com/tmellor/forge/internal/credential/jwtstore"
	"github.com/tmellor/forge/internal/profilestore"
	"github.com/tmellor/forge/internal/profilestore/sql"
)

// BuildCredentialBackend constructs the credential.Backend named by
// cfg.Backend. Exactly one backend is active per process, so
// this is called once during cmd/forge startup.
func BuildCredentialBackend(cfg CredentialConfig) (credential.Backend, error) {
	switch cfg.Backend {
	case "", CredentialBackendBase64:
		return credential.NewBase64Backend(), nil

	case CredentialBackendBadger:
		if cfg.BadgerDir == "" {
			return nil, fmt.Errorf("bootstrap: credential.badger_dir is required for the badger backend")
		}
		key, err := badgerKeyFromEnv()
		if err != nil {
			return nil, err
		}
		return badgerstore.Open(cfg.BadgerDir, key)

	case CredentialBackendJWT:
		secret := os.Getenv(cfg.JWTSecretEnv)
		if secret == "" {
			return nil, fmt.Errorf("bootstrap: environment variable %q is required for the jwt credential backend", cfg.JWTSecretEnv)
		}
		return jwtstore.New([]byte(secret))

	default:
		return nil, fmt.Errorf("bootstrap: unknown credential backend %q", cfg.Backend)
	}
}

// badgerKeyFromEnv derives the secretbox key the badger backend seals
// values under from FORGE_BADGER_SECRETBOX_KEY, which must be exactly 32
// bytes. The key material itself never passes through config files,
// matching the jwt backend's secret-via-env-var discipline above.
func badgerKeyFromEnv() ([32]byte, error) {
	var key [32]byte
	raw := os.Getenv("FORGE_BADGER_SECRETBOX_KEY")
	if len(raw) != 32 {
		return key, fmt.Errorf("bootstrap: FORGE_BADGER_SECRETBOX_KEY must be exactly 32 bytes, got %d", len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

// BuildProfileSource constructs the profilestore.Source named by
// cfg.Store.
func BuildProfileSource(cfg ProfileConfig) (profilestore.Source, error) {
	switch cfg.Store {
	case "", ProfileStoreFile:
		path := cfg.FilePath
		if path == "" {
			p, err := profilestore.DefaultProfilePath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return profilestore.NewFileStore(path)

	case ProfileStoreSQLite:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("bootstrap: profile.dsn is required for the sqlite store")
		}
		return sql.OpenSQLite(cfg.DSN)

	case ProfileStorePostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("bootstrap: profile.dsn is required for the postgres store")
		}
		return sql.OpenPostgres(cfg.DSN)

	default:
		return nil, fmt.Errorf("bootstrap: unknown profile store %q", cfg.Store)
	}
}
