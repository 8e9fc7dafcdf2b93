package filestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestDirLifecycle(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")
	dir, err := Open(root)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	w, err := dir.Create("a.ogg.downloading")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, _ = w.Write([]byte("data"))
	_ = w.Close()
	if err := dir.Rename("a.ogg.downloading", "a.ogg"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	names, err := dir.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 1 || names[0] != "a.ogg" {
		t.Fatalf("unexpected names %v", names)
	}
	if uri := dir.URI("a.ogg"); !strings.HasPrefix(uri, "file://") || !strings.HasSuffix(uri, "/cache/a.ogg") {
		t.Fatalf("unexpected uri %s", uri)
	}
	if err := dir.Remove("a.ogg"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := dir.Remove("a.ogg"); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
}

func TestDirRejectsPaths(t *testing.T) {
	dir, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, name := range []string{"", "..", "a/b", `a\b`} {
		if _, err := dir.Create(name); err == nil {
			t.Fatalf("expected error for %q", name)
		}
	}
}

func TestOpenFsInMemory(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir, err := OpenFs(fs, "/music")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := afero.WriteFile(fs, "/music/b.ogg", []byte("b"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	w, err := dir.Create("a.ogg.downloading")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = w.Close()
	if err := dir.Rename("a.ogg.downloading", "b.ogg"); err != nil {
		t.Fatalf("rename over existing: %v", err)
	}
	names, err := dir.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 1 || names[0] != "b.ogg" {
		t.Fatalf("unexpected names %v", names)
	}
	if dir.URI("b.ogg") != "file:///music/b.ogg" {
		t.Fatalf("unexpected uri %s", dir.URI("b.ogg"))
	}
	if _, err := OpenFs(fs, " "); err == nil {
		t.Fatalf("expected error for empty root")
	}
}
