package environment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Loader resolves template names against an ordered list of search paths.
// The first path holding a file with the given name wins.
type Loader struct {
	paths []string
	fsys  []fs.FS
}

// NewLoader creates a Loader over the given directories.
func NewLoader(paths ...string) *Loader {
	l := &Loader{paths: paths}
	for _, p := range paths {
		l.fsys = append(l.fsys, os.DirFS(p))
	}
	return l
}

// Paths returns the search paths in lookup order.
func (l *Loader) Paths() []string {
	return append([]string(nil), l.paths...)
}

// Resolve returns the file system path the named template loads from.
func (l *Loader) Resolve(name string) (string, error) {
	i, err := l.find(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.paths[i], filepath.FromSlash(name)), nil
}

// Load reads the named template from the first search path that has it.
func (l *Loader) Load(name string) (string, error) {
	i, err := l.find(name)
	if err != nil {
		return "", err
	}
	data, err := fs.ReadFile(l.fsys[i], name)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", name, err)
	}
	return string(data), nil
}

func (l *Loader) find(name string) (int, error) {
	// fs.ValidPath rejects absolute paths and ".." elements, which keeps
	// lookups inside the search paths.
	if !fs.ValidPath(name) || name == "." {
		return 0, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	for i, fsys := range l.fsys {
		info, err := fs.Stat(fsys, name)
		if err == nil && !info.IsDir() {
			return i, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("failed to stat template %s in %s: %w", name, l.paths[i], err)
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
}
