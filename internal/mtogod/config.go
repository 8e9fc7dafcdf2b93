package mtogod

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mikey-austin/mtogo/pkg/spark"
)

// Config is the top-level configuration for mtogod.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Backend BackendConfig `toml:"backend"`
	Catalog CatalogConfig `toml:"catalog"`
	Cache   CacheConfig   `toml:"cache"`
	Player  PlayerConfig  `toml:"player"`
	Modules ModulesConfig `toml:"modules"`
}

// ServerConfig defines shared server settings.
type ServerConfig struct {
	Broker    string     `toml:"broker"`
	Identity  string     `toml:"identity"`
	Name      string     `toml:"name"`
	TopicBase string     `toml:"topic_base"`
	LogLevel  string     `toml:"log_level"`
	LogFormat string     `toml:"log_format"`
	LogOutput string     `toml:"log_output"`
	LogSource bool       `toml:"log_source"`
	LogUTC    bool       `toml:"log_utc"`
	LogColor  bool       `toml:"log_color"`
	TLS       TLSConfig  `toml:"tls"`
	Auth      AuthConfig `toml:"auth"`
}

// TLSConfig holds TLS paths for MQTT.
type TLSConfig struct {
	CA   string `toml:"ca"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

// AuthConfig holds MQTT auth credentials.
type AuthConfig struct {
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

// BackendConfig points at the music and video backends.
type BackendConfig struct {
	MusicURL  string `toml:"music_url"`
	VideoURL  string `toml:"video_url"`
	Token     string `toml:"token"`
	TimeoutMS int64  `toml:"timeout_ms"`
}

// CatalogConfig configures catalog loading.
type CatalogConfig struct {
	RefreshIntervalMS int64    `toml:"refresh_interval_ms"`
	RetryDelayMS      int64    `toml:"retry_delay_ms"`
	SnapshotPath      string   `toml:"snapshot_path"`
	Feeds             []string `toml:"feeds"`
}

// CacheConfig configures the music cache.
type CacheConfig struct {
	Mode             string `toml:"mode"`
	Dir              string `toml:"dir"`
	Attempts         int    `toml:"attempts"`
	ConnectTimeoutMS int64  `toml:"connect_timeout_ms"`
	RequestTimeoutMS int64  `toml:"request_timeout_ms"`
	MaxDownloads     int64  `toml:"max_downloads"`
	IOWorkers        int64  `toml:"io_workers"`
	Watch            bool   `toml:"watch"`
}

// PlayerConfig selects and tunes the playback driver.
type PlayerConfig struct {
	Driver         string          `toml:"driver"`
	VolumeSteps    int             `toml:"volume_steps"`
	InitialVolume  int             `toml:"initial_volume"`
	PollIntervalMS int64           `toml:"poll_interval_ms"`
	VLC            VLCConfig       `toml:"vlc"`
	Kodi           KodiConfig      `toml:"kodi"`
	GStreamer      GStreamerConfig `toml:"gstreamer"`
}

// VLCConfig configures the VLC HTTP interface driver.
type VLCConfig struct {
	BaseURL   string `toml:"base_url"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	TimeoutMS int64  `toml:"timeout_ms"`
}

// KodiConfig configures the Kodi JSON-RPC driver.
type KodiConfig struct {
	BaseURL   string `toml:"base_url"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	TimeoutMS int64  `toml:"timeout_ms"`
}

// GStreamerConfig configures the GStreamer driver.
type GStreamerConfig struct {
	Pipeline    string `toml:"pipeline"`
	Device      string `toml:"device"`
	CrossfadeMS int64  `toml:"crossfade_ms"`
}

// ModulesConfig holds optional module configurations.
type ModulesConfig struct {
	EmbeddedMQTT EmbeddedMQTTConfig `toml:"embedded_mqtt"`
}

// EmbeddedMQTTConfig configures the embedded MQTT broker.
type EmbeddedMQTTConfig struct {
	Enabled        bool   `toml:"enabled"`
	Listen         string `toml:"listen"`
	AllowAnonymous bool   `toml:"allow_anonymous"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TLSCA          string `toml:"tls_ca"`
	TLSCert        string `toml:"tls_cert"`
	TLSKey         string `toml:"tls_key"`
}

// LoadConfig loads a config file from path.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "mtogo", "mtogod.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "mtogo", "mtogod.toml"), nil
}

// ApplyDefaults fills unset values.
func (c *Config) ApplyDefaults() {
	if c.Server.TopicBase == "" {
		c.Server.TopicBase = spark.BaseTopic
	}
	if c.Server.Identity == "" {
		c.Server.Identity = "mtogod"
	}
	if c.Server.Name == "" {
		c.Server.Name = c.Server.Identity
	}
	if c.Cache.Mode == "" {
		c.Cache.Mode = "disabled"
	}
	if c.Player.Driver == "" {
		c.Player.Driver = "vlc"
	}
	if c.Player.VLC.BaseURL == "" {
		c.Player.VLC.BaseURL = "http://127.0.0.1:8080"
	}
	if c.Player.Kodi.BaseURL == "" {
		c.Player.Kodi.BaseURL = "http://127.0.0.1:8081"
	}
}

// Validate reports configuration that cannot run.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Backend.MusicURL) == "" {
		return errors.New("backend.music_url is required")
	}
	if strings.ContainsAny(c.Server.Identity, "/+#") {
		return fmt.Errorf("server.identity %q must not contain MQTT wildcards or separators", c.Server.Identity)
	}
	switch c.Player.Driver {
	case "vlc", "kodi", "gstreamer":
	default:
		return fmt.Errorf("unknown player driver %q", c.Player.Driver)
	}
	if c.Cache.Mode != "disabled" && strings.TrimSpace(c.Cache.Dir) == "" {
		return errors.New("cache.dir is required when the cache is enabled")
	}
	return nil
}

// Redacted returns a copy with secrets masked.
func (c Config) Redacted() Config {
	mask := func(value string) string {
		if value == "" {
			return ""
		}
		return "***"
	}
	c.Backend.Token = mask(c.Backend.Token)
	c.Server.Auth.Pass = mask(c.Server.Auth.Pass)
	c.Player.VLC.Password = mask(c.Player.VLC.Password)
	c.Player.Kodi.Password = mask(c.Player.Kodi.Password)
	c.Modules.EmbeddedMQTT.Password = mask(c.Modules.EmbeddedMQTT.Password)
	c.Catalog.Feeds = append([]string(nil), c.Catalog.Feeds...)
	return c
}

// WriteTOML renders the config, with secrets masked.
func (c Config) WriteTOML(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c.Redacted())
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
