package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir string, data string) string {
	t.Helper()
	path := filepath.Join(dir, "mtogo", "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadFromXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	writeConfig(t, dir, `
broker = "mqtt://localhost:1883"
identity = "desk"
timeout_ms = 2500

[auth]
user = "ana"
pass = "secret"

[tls]
ca = "/etc/mtogo/ca.pem"

[aliases]
kitchen = "spark-kitchen"

[defaults]
device = "kitchen"
`)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Broker != "mqtt://localhost:1883" || cfg.Identity != "desk" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Timeout() != 2500*time.Millisecond {
		t.Fatalf("unexpected timeout %s", cfg.Timeout())
	}
	if cfg.Auth.User != "ana" || cfg.Auth.Pass != "secret" || cfg.TLS.CA != "/etc/mtogo/ca.pem" {
		t.Fatalf("unexpected connection settings %+v", cfg)
	}
	if cfg.Aliases["kitchen"] != "spark-kitchen" || cfg.Defaults.Device != "kitchen" {
		t.Fatalf("unexpected aliases/defaults %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Aliases == nil || cfg.Timeout() != 0 {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "unknown key", data: "brokr = \"x\"\n", want: "unknown keys: brokr"},
		{name: "empty alias", data: "[aliases]\nkitchen = \" \"\n", want: `alias "kitchen" has no target`},
		{name: "bad toml", data: "broker = \n", want: "config.toml"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.data)
			_, err := LoadFile(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestPathFallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", home)
	path, err := Path()
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if path != filepath.Join(home, ".config", "mtogo", "config.toml") {
		t.Fatalf("unexpected path %s", path)
	}
}
