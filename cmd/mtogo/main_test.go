package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mikey-austin/mtogo/internal/core"
)

func TestParseVolumeDelta(t *testing.T) {
	cases := map[string]int{"+10": 10, "-5": -5, "7": 7}
	for in, want := range cases {
		got, err := parseVolumeDelta(in)
		if err != nil || got != want {
			t.Fatalf("parseVolumeDelta(%q) = %d, %v", in, got, err)
		}
	}
	_, err := parseVolumeDelta("loud")
	if core.ExitCode(err) != core.ExitUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestRawInput(t *testing.T) {
	data, err := rawInput(` {"Music":{"command":"Frwd"}} `)
	if err != nil || string(data) != `{"Music":{"command":"Frwd"}}` {
		t.Fatalf("unexpected inline command %q, %v", data, err)
	}

	path := filepath.Join(t.TempDir(), "cmd.json")
	if err := os.WriteFile(path, []byte("\"Version\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err = rawInput(path)
	if err != nil || string(data) != `"Version"` {
		t.Fatalf("unexpected file command %q, %v", data, err)
	}
}

func TestReadFileOrStdin(t *testing.T) {
	data, err := readFileOrStdin("-", strings.NewReader("\"Heartbeat\""))
	if err != nil || string(data) != "\"Heartbeat\"" {
		t.Fatalf("unexpected stdin read %q, %v", data, err)
	}
}

func TestDefaultIdentity(t *testing.T) {
	if got := defaultIdentity("flag", "cfg"); got != "flag" {
		t.Fatalf("flag should win, got %s", got)
	}
	if got := defaultIdentity("", "cfg"); got != "cfg" {
		t.Fatalf("config should win, got %s", got)
	}
	if got := defaultIdentity("", ""); got == "" {
		t.Fatalf("expected a fallback identity")
	}
}

func TestRootCommandRequiresBroker(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := newRootCommand()
	root.SetArgs([]string{"next"})
	err := root.Execute()
	if core.ExitCode(err) != core.ExitUsage {
		t.Fatalf("expected usage error without a broker, got %v", err)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"ls", "next", "prev", "toggle", "vol", "current", "queue", "queue-category", "now", "reset-cursor", "ping", "version", "raw"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("missing subcommand %s", name)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "env", "cfg"); got != "env" {
		t.Fatalf("expected env, got %q", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
