package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the controller's view of config.toml.
type Config struct {
	Broker    string            `toml:"broker"`
	Identity  string            `toml:"identity"`
	TopicBase string            `toml:"topic_base"`
	TimeoutMS int               `toml:"timeout_ms"`
	Auth      Auth              `toml:"auth"`
	TLS       TLS               `toml:"tls"`
	Aliases   map[string]string `toml:"aliases"`
	Defaults  Defaults          `toml:"defaults"`
}

type Auth struct {
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

type TLS struct {
	CA   string `toml:"ca"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

// Defaults holds the device used when no selector is given.
type Defaults struct {
	Device string `toml:"device"`
}

// Timeout returns the configured command timeout, or zero when unset.
func (c Config) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Path is where Load looks for the file.
func Path() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "mtogo", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "mtogo", "config.toml"), nil
}

// Load reads the file at Path. A missing file is an empty config.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return Config{}, err
	}
	return LoadFile(path)
}

// LoadFile reads the file at path. A missing file is an empty config.
func LoadFile(path string) (Config, error) {
	cfg := Config{Aliases: map[string]string{}}
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if cfg.Aliases == nil {
		cfg.Aliases = map[string]string{}
	}
	for alias, target := range cfg.Aliases {
		if strings.TrimSpace(target) == "" {
			return Config{}, fmt.Errorf("%s: alias %q has no target", path, alias)
		}
	}
	return cfg, nil
}
