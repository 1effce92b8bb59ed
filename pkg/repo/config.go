package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/odvcencio/refstore/pkg/object"
)

const (
	configFile         = "config.toml"
	defaultLockTimeout = 2 * time.Second
)

// Config stores repository-local settings.
type Config struct {
	Core    CoreConfig        `toml:"core"`
	Lock    LockConfig        `toml:"lock"`
	Log     LogConfig         `toml:"log"`
	Remotes map[string]string `toml:"remotes,omitempty"`
}

type CoreConfig struct {
	Hash string `toml:"hash"` // "sha1" or "sha256"
}

type LockConfig struct {
	Timeout string `toml:"timeout"` // how long to wait for a held lock; "0s" fails immediately
}

type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn or error; overridden by --log-level
}

// DefaultConfig returns the configuration written by Init.
func DefaultConfig(kind object.Kind) *Config {
	return &Config{
		Core:    CoreConfig{Hash: kind.String()},
		Lock:    LockConfig{Timeout: defaultLockTimeout.String()},
		Log:     LogConfig{Level: "warn"},
		Remotes: make(map[string]string),
	}
}

// HashKind returns the configured id kind, SHA-256 when unset or invalid.
func (c *Config) HashKind() object.Kind {
	k, err := object.ParseKind(c.Core.Hash)
	if err != nil {
		return object.SHA256
	}
	return k
}

// LockTimeout returns how long lock acquisition may wait.
func (c *Config) LockTimeout() time.Duration {
	if strings.TrimSpace(c.Lock.Timeout) == "" {
		return defaultLockTimeout
	}
	d, err := time.ParseDuration(c.Lock.Timeout)
	if err != nil || d < 0 {
		return defaultLockTimeout
	}
	return d
}

func (c *Config) validate() error {
	if _, err := object.ParseKind(c.Core.Hash); err != nil {
		return err
	}
	if c.Lock.Timeout != "" {
		if _, err := time.ParseDuration(c.Lock.Timeout); err != nil {
			return fmt.Errorf("lock timeout: %w", err)
		}
	}
	return nil
}

func configPath(gotDir string) string {
	return filepath.Join(gotDir, configFile)
}

func readConfig(gotDir string) (*Config, error) {
	cfg := DefaultConfig(object.SHA256)
	data, err := os.ReadFile(configPath(gotDir))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("read config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = make(map[string]string)
	}
	return cfg, nil
}

// ReadConfig reads .got/config.toml. A missing file yields the defaults.
func (r *Repo) ReadConfig() (*Config, error) {
	return readConfig(r.GotDir)
}

func writeConfig(gotDir string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}

	tmp, err := os.CreateTemp(gotDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, configPath(gotDir)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}

// WriteConfig atomically writes .got/config.toml and makes cfg current.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig(r.HashKind())
	}
	if cfg.Remotes == nil {
		cfg.Remotes = make(map[string]string)
	}
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := writeConfig(r.GotDir, cfg); err != nil {
		return err
	}
	r.Config = cfg
	return nil
}

// SetRemote stores/updates a named remote URL in repository config.
func (r *Repo) SetRemote(name, remoteURL string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("set remote: remote name is required")
	}
	remoteURL = strings.TrimSpace(remoteURL)
	if remoteURL == "" {
		return fmt.Errorf("set remote: remote URL is required")
	}

	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	cfg.Remotes[name] = remoteURL
	return r.WriteConfig(cfg)
}

// RemoteURL returns the configured URL for the given remote name.
func (r *Repo) RemoteURL(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("remote name is required")
	}

	cfg, err := r.ReadConfig()
	if err != nil {
		return "", err
	}
	url, ok := cfg.Remotes[name]
	if !ok || strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("remote %q is not configured", name)
	}
	return url, nil
}
