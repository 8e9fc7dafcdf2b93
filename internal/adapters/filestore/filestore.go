// Package filestore exposes a single directory as a flat file store.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Dir is a flat file store rooted at a directory. Names never contain path
// separators.
type Dir struct {
	fs   afero.Fs
	root string
}

// Open returns a store rooted at root on the local disk, creating the
// directory if needed.
func Open(root string) (*Dir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("root required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return OpenFs(afero.NewOsFs(), abs)
}

// OpenFs returns a store over the root directory of fs.
func OpenFs(fs afero.Fs, root string) (*Dir, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root required")
	}
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	return &Dir{fs: afero.NewBasePathFs(fs, root), root: root}, nil
}

// Root returns the directory backing the store.
func (d *Dir) Root() string {
	return d.root
}

// Fs returns the filesystem scoped to the root.
func (d *Dir) Fs() afero.Fs {
	return d.fs
}

// List returns the names of regular files in the root.
func (d *Dir) List(ctx context.Context) ([]string, error) {
	infos, err := afero.ReadDir(d.fs, string(filepath.Separator))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if info.IsDir() {
			continue
		}
		names = append(names, info.Name())
	}
	return names, nil
}

// Create truncates or creates name for writing.
func (d *Dir) Create(name string) (io.WriteCloser, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	return d.fs.Create(name)
}

// Rename moves from to to, replacing any existing file.
func (d *Dir) Rename(from string, to string) error {
	if err := checkName(from); err != nil {
		return err
	}
	if err := checkName(to); err != nil {
		return err
	}
	return d.fs.Rename(from, to)
}

// Remove deletes name. Missing files are not an error.
func (d *Dir) Remove(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := d.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// URI returns a file:// URI for name.
func (d *Dir) URI(name string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(d.root, name))}
	return u.String()
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}
