package profilestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// FileProfile is the on-disk shape of one profile entry in the YAML
// profile file, decoded via mapstructure.
type FileProfile struct {
	Name             string         `mapstructure:"name" yaml:"name"`
	Type             string         `mapstructure:"type" yaml:"type"`
	Default          bool           `mapstructure:"default" yaml:"default"`
	Fields           map[string]any `mapstructure:"fields" yaml:"fields"`
	SecureFieldNames []string       `mapstructure:"secureFields" yaml:"secureFields"`
	Dependencies     []struct {
		Type string `mapstructure:"type" yaml:"type"`
		Name string `mapstructure:"name" yaml:"name"`
	} `mapstructure:"dependencies" yaml:"dependencies"`
}

// FileStore is the default profile store: a single YAML file holding every
// profile, loaded through viper (for YAML reading and decode hooks; no
// environment variables are consulted) and watched via fsnotify so external edits invalidate the in-process
// cache on next load. A missing file is treated as an empty profile set.
type FileStore struct {
	path string
	v    *viper.Viper

	mu       sync.RWMutex
	profiles []FileProfile
	loaded   bool

	watcher *fsnotify.Watcher
}

// DefaultProfilePath returns the conventional profile file location,
// honoring XDG_CONFIG_HOME.
func DefaultProfilePath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("profilestore: cannot determine home directory: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "forge", "profiles.yaml"), nil
}

// NewFileStore constructs a FileStore reading path. The file need not exist
// yet; a missing file reads as an empty profile set. FileStore never writes
// the file.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path: path,
		v:    viper.New(),
	}
	fs.v.SetConfigFile(path)
	fs.v.SetConfigType("yaml")

	if err := fs.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		dir := filepath.Dir(path)
		if werr := watcher.Add(dir); werr == nil {
			fs.watcher = watcher
			go fs.watchLoop()
		} else {
			_ = watcher.Close()
		}
	}

	return fs, nil
}

// Close stops the file watcher, if one was started.
func (fs *FileStore) Close() error {
	if fs.watcher != nil {
		return fs.watcher.Close()
	}
	return nil
}

func (fs *FileStore) watchLoop() {
	for event := range fs.watcher.Events {
		if event.Name == fs.path {
			fs.mu.Lock()
			fs.loaded = false
			fs.mu.Unlock()
		}
	}
}

func (fs *FileStore) reload() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			fs.profiles = nil
			fs.loaded = true
			return nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fs.profiles = nil
			fs.loaded = true
			return nil
		}
		return fmt.Errorf("profilestore: reading %q: %w", fs.path, err)
	}

	var wrapper struct {
		Profiles []FileProfile `mapstructure:"profiles"`
	}
	decodeHook := mapstructure.ComposeDecodeHookFunc(mapstructure.StringToTimeDurationHookFunc())
	if err := fs.v.Unmarshal(&wrapper, viper.DecodeHook(decodeHook)); err != nil {
		return fmt.Errorf("profilestore: decoding %q: %w", fs.path, err)
	}

	fs.profiles = wrapper.Profiles
	fs.loaded = true
	return nil
}

func (fs *FileStore) ensureLoaded() error {
	fs.mu.RLock()
	loaded := fs.loaded
	fs.mu.RUnlock()
	if loaded {
		return nil
	}
	return fs.reload()
}

func toRaw(fp FileProfile) *RawProfile {
	deps := make([]Dependency, 0, len(fp.Dependencies))
	for _, d := range fp.Dependencies {
		deps = append(deps, Dependency{Type: d.Type, Name: d.Name})
	}
	return &RawProfile{
		Name:             fp.Name,
		Type:             fp.Type,
		Fields:           fp.Fields,
		SecureFieldNames: fp.SecureFieldNames,
		Dependencies:     deps,
	}
}

// Load implements Source.
func (fs *FileStore) Load(profileType, name string) (*RawProfile, error) {
	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	for _, fp := range fs.profiles {
		if fp.Type == profileType && fp.Name == name {
			return toRaw(fp), nil
		}
	}
	return nil, fmt.Errorf("profilestore: no profile %q of type %q", name, profileType)
}

// LoadDefault implements Source.
func (fs *FileStore) LoadDefault(profileType string) (*RawProfile, error) {
	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	for _, fp := range fs.profiles {
		if fp.Type == profileType && fp.Default {
			return toRaw(fp), nil
		}
	}
	return nil, fmt.Errorf("profilestore: no default profile of type %q", profileType)
}

// LoadAll implements Source.
func (fs *FileStore) LoadAll(profileType string) ([]*RawProfile, error) {
	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var out []*RawProfile
	for _, fp := range fs.profiles {
		if fp.Type == profileType {
			out = append(out, toRaw(fp))
		}
	}
	return out, nil
}

var _ Source = (*FileStore)(nil)
