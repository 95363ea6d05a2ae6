package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// searchPathLoader is a pongo2.TemplateLoader over an ordered list of
// directories. Template names stay relative to the search path, so a theme
// template can include one that only exists in a later root.
type searchPathLoader struct {
	roots []string
}

// Abs returns name cleaned and relative to the search path. Absolute names
// are kept as they are.
func (l *searchPathLoader) Abs(_, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(name)), "/")
}

// Get reads the first root holding name.
func (l *searchPathLoader) Get(name string) (io.Reader, error) {
	if filepath.IsAbs(name) {
		return readTemplate(name)
	}
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("template %q is outside the search path", name)
	}
	for _, root := range l.roots {
		r, err := readTemplate(filepath.Join(root, rel))
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("template %q not found in %s: %w", name, strings.Join(l.roots, ", "), fs.ErrNotExist)
}

func readTemplate(file string) (io.Reader, error) {
	buf, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(buf), nil
}
