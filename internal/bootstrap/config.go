// Package bootstrap loads cmd/forge's own process configuration: which
// credential backend to construct, where the profile store lives, and
// whether to expose Prometheus metrics. Settings come from a YAML file
// with FORGE_-prefixed environment overrides, decoded through viper and
// mapstructure hooks.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// CredentialBackendKind selects which credential.Backend cmd/forge
// constructs at startup; only one implementation is active per process.
type CredentialBackendKind string

const (
	CredentialBackendBase64 CredentialBackendKind = "base64"
	CredentialBackendBadger CredentialBackendKind = "badger"
	CredentialBackendJWT    CredentialBackendKind = "jwt"
)

// ProfileStoreKind selects which profilestore.Source backs the Profile
// Manager.
type ProfileStoreKind string

const (
	ProfileStoreFile     ProfileStoreKind = "file"
	ProfileStoreSQLite   ProfileStoreKind = "sqlite"
	ProfileStorePostgres ProfileStoreKind = "postgres"
)

// Config is cmd/forge's bootstrap configuration: everything needed to
// construct the Processor's dependencies before any command runs.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	Credential CredentialConfig `mapstructure:"credential" yaml:"credential"`
	Profile    ProfileConfig    `mapstructure:"profile" yaml:"profile"`

	// MetricsEnabled toggles a process-wide Prometheus registry for
	// pkg/processor.Metrics.
	MetricsEnabled bool `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
}

// LoggingConfig controls forgelog at process start.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// CredentialConfig selects and configures the active Credential Manager
// backend.
type CredentialConfig struct {
	Backend CredentialBackendKind `mapstructure:"backend" yaml:"backend"`

	// BadgerDir is the embedded database directory for the badger backend.
	BadgerDir string `mapstructure:"badger_dir" yaml:"badger_dir"`

	// JWTSecretEnv names the environment variable holding the signing
	// secret for the jwt backend; the secret itself is never read from the
	// config file. The processor reads no environment variables of its
	// own; consulting one is the credential backend's choice, made
	// explicit here at the host boundary.
	JWTSecretEnv string `mapstructure:"jwt_secret_env" yaml:"jwt_secret_env"`
}

// ProfileConfig selects and configures the active Profile Store.
type ProfileConfig struct {
	Store ProfileStoreKind `mapstructure:"store" yaml:"store"`

	// FilePath is used when Store is "file"; empty means
	// profilestore.DefaultProfilePath().
	FilePath string `mapstructure:"file_path" yaml:"file_path"`

	// DSN is used when Store is "sqlite" or "postgres": a filesystem path
	// or a Postgres connection string respectively.
	DSN string `mapstructure:"dsn" yaml:"dsn"`

	// WatchInterval is decoded from configuration but nothing reads it:
	// BuildProfileSource does not pass it on, and the file store has no
	// polling fallback; it relies on fsnotify events alone.
	WatchInterval time.Duration `mapstructure:"watch_interval" yaml:"watch_interval"`
}

// Default returns forge's zero-config defaults: a base64 in-memory
// credential backend and the per-user YAML profile file. Safe to run
// against with no configuration present at all.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "INFO", Format: "text"},
		Credential: CredentialConfig{
			Backend:      CredentialBackendBase64,
			JWTSecretEnv: "FORGE_JWT_SIGNING_SECRET",
		},
		Profile: ProfileConfig{
			Store:         ProfileStoreFile,
			WatchInterval: 5 * time.Second,
		},
		MetricsEnabled: false,
	}
}

// Load loads cmd/forge's configuration from, in descending precedence:
// environment variables prefixed FORGE_, a YAML file at configPath (or the
// default XDG location when configPath is empty), and Default()'s values.
// A missing config file is not an error; it is the zero-config case.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	// AutomaticEnv only overrides keys viper already knows about, so every
	// key is bound explicitly: FORGE_ variables then apply whether or not
	// the file sets that key, or exists at all.
	for _, key := range []string{
		"logging.level", "logging.format", "logging.output",
		"credential.backend", "credential.badger_dir", "credential.jwt_secret_env",
		"profile.store", "profile.file_path", "profile.dsn", "profile.watch_interval",
		"metrics_enabled",
	} {
		_ = v.BindEnv(key)
	}

	cfg := Default()
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("bootstrap: decoding config: %w", err)
	}
	return cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("FORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.AddConfigPath(configDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func configDir() string {
	if home := os.Getenv("XDG_CONFIG_HOME"); home != "" {
		return filepath.Join(home, "forge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "forge")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("bootstrap: reading config file: %w", err)
	}
	return true, nil
}
