// Package engine wraps the pongo2 template set that pages are rendered with.
package engine

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/flosch/pongo2/v6"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// ErrNoTemplateDir is returned when the template directory is not configured.
var ErrNoTemplateDir = errors.New("template directory is not set")

// Options configures a new Environment.
//
// There is no escaping switch: pongo2 keeps autoescaping as one package-wide
// setting, so every Environment renders with it on. Variables are escaped and
// Function results are not. Themes that expect raw variable output wrap it in
// {% autoescape off %} or use the safe filter.
type Options struct {
	// Name identifies the template set in engine error messages.
	Name string
	// TemplateDir is the primary search root, usually the theme template directory.
	TemplateDir string
	// LibraryDir is an optional secondary search root for shared templates.
	LibraryDir string
	// Charset is the output character set. Empty means UTF-8.
	Charset string
	// Debug disables template caching.
	Debug bool
	// TrimBlocks removes the first newline after a block tag.
	TrimBlocks bool
	// LStripBlocks strips leading whitespace before a block tag.
	LStripBlocks bool
}

// Function is a template callable returning text. The text is inserted
// without escaping.
type Function func(args ...any) (string, error)

// Environment owns a template set, its search path and its globals.
type Environment struct {
	set        *pongo2.TemplateSet
	searchPath []string
	charset    string
	encoder    *encoding.Encoder
	functions  map[string]struct{}
}

// New constructs an Environment rooted at opts.TemplateDir. The directories
// must exist.
func New(opts Options) (*Environment, error) {
	if strings.TrimSpace(opts.TemplateDir) == "" {
		return nil, ErrNoTemplateDir
	}

	dirs := []string{opts.TemplateDir}
	if strings.TrimSpace(opts.LibraryDir) != "" {
		dirs = append(dirs, opts.LibraryDir)
	}

	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("template search path %q: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("template search path %q is not a directory", dir)
		}
	}

	charset := strings.TrimSpace(opts.Charset)
	if charset == "" {
		charset = "UTF-8"
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", charset, err)
	}

	name := opts.Name
	if name == "" {
		name = "pongopress"
	}
	set := pongo2.NewSet(name, &searchPathLoader{roots: dirs})
	set.Debug = opts.Debug
	set.Options.TrimBlocks = opts.TrimBlocks
	set.Options.LStripBlocks = opts.LStripBlocks

	e := &Environment{
		set:        set,
		searchPath: dirs,
		charset:    charset,
		functions:  make(map[string]struct{}),
	}
	if enc != unicode.UTF8 {
		// Runes the charset cannot represent become numeric character references.
		e.encoder = encoding.HTMLEscapeUnsupported(enc.NewEncoder())
	}
	return e, nil
}

// SearchPath returns the template search roots in lookup order.
func (e *Environment) SearchPath() []string {
	out := make([]string, len(e.searchPath))
	copy(out, e.searchPath)
	return out
}

// Charset returns the output character set.
func (e *Environment) Charset() string { return e.charset }

// AddGlobal makes value available to every template as name. A later call
// with the same name replaces the earlier value.
func (e *Environment) AddGlobal(name string, value any) {
	e.set.Globals[name] = value
}

// AddFunction makes fn callable from every template as name.
func (e *Environment) AddFunction(name string, fn Function) {
	e.functions[name] = struct{}{}
	e.set.Globals[name] = func(args ...any) (*pongo2.Value, error) {
		out, err := fn(args...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return pongo2.AsSafeValue(out), nil
	}
}

// Globals returns a copy of the registered global variables, excluding
// functions.
func (e *Environment) Globals() map[string]any {
	out := make(map[string]any, len(e.set.Globals))
	for k, v := range e.set.Globals {
		if _, isFn := e.functions[k]; isFn {
			continue
		}
		out[k] = v
	}
	return out
}

// Functions returns the registered function names in sorted order.
func (e *Environment) Functions() []string {
	names := make([]string, 0, len(e.functions))
	for name := range e.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render executes the template called name, relative to the search path,
// with vars layered over the globals.
func (e *Environment) Render(name string, vars map[string]any) (string, error) {
	tpl, err := e.set.FromCache(name)
	if err != nil {
		return "", fmt.Errorf("load template %q: %w", name, err)
	}
	if vars == nil {
		vars = map[string]any{}
	}
	out, err := tpl.Execute(pongo2.Context(vars))
	if err != nil {
		return "", fmt.Errorf("execute template %q: %w", name, err)
	}
	if e.encoder != nil {
		encoded, err := e.encoder.String(out)
		if err != nil {
			return "", fmt.Errorf("encode output as %s: %w", e.charset, err)
		}
		return encoded, nil
	}
	return out, nil
}
