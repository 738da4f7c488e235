package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalURLPrefix is where Local serves its files.
const LocalURLPrefix = "/uploads/"

// Local stores files in a directory served under LocalURLPrefix.
type Local struct {
	dir string
}

func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Save(_ context.Context, name, _ string, data []byte) (string, error) {
	if err := os.WriteFile(filepath.Join(l.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return LocalURLPrefix + name, nil
}

func (l *Local) Owns(url string) bool {
	_, ok := l.name(url)
	return ok
}

func (l *Local) Delete(_ context.Context, url string) error {
	name, ok := l.name(url)
	if !ok {
		return fmt.Errorf("not a local upload: %q", url)
	}
	err := os.Remove(filepath.Join(l.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

// name extracts the file name from a /uploads/ URL, refusing anything that
// would escape the directory.
func (l *Local) name(url string) (string, bool) {
	name, ok := strings.CutPrefix(url, LocalURLPrefix)
	if !ok || name == "" || path.Base(name) != name || name == ".." {
		return "", false
	}
	return name, true
}

// Handler serves stored files. Mount it at LocalURLPrefix.
func (l *Local) Handler() http.Handler {
	return http.StripPrefix(LocalURLPrefix, http.FileServer(http.Dir(l.dir)))
}
