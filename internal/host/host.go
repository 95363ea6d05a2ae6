// Package host is the minimal content host that pongopress plugs into. It
// owns the site metadata, the theme location, the table of output functions
// and the template selection step.
package host

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pongopress/pongopress/internal/config"
)

// OutputFunc is a host function that produces output by writing to w rather
// than returning it.
type OutputFunc func(w io.Writer, args ...any) error

// Info is the site metadata reported by the host.
type Info struct {
	Language    string
	Charset     string
	URL         string
	Name        string
	Description string
}

// Host is the view of the content host available while serving one request.
type Host interface {
	// Info returns the site metadata.
	Info() Info
	// StylesheetDir returns the filesystem directory of the active theme.
	StylesheetDir() string
	// StylesheetURI returns the public URL of the active theme directory.
	StylesheetURI() string
	// ContentDir returns the host content directory.
	ContentDir() string
	// IsAdmin reports whether the request is served in an administrative context.
	IsAdmin() bool
	// Function looks up a host output function by name.
	Function(name string) (OutputFunc, bool)
}

// RequestFunc is an output function that needs the request being served.
type RequestFunc func(r *Request, w io.Writer, args ...any) error

// Site is the process-wide host built from configuration.
type Site struct {
	cfg *config.Config

	mu    sync.RWMutex
	funcs map[string]RequestFunc
}

// NewSite returns a Site with the built-in output functions registered.
func NewSite(cfg *config.Config) *Site {
	s := &Site{
		cfg:   cfg,
		funcs: make(map[string]RequestFunc),
	}
	s.RegisterFunction("wp_head", wpHead)
	s.RegisterFunction("wp_footer", wpFooter)
	s.RegisterFunction("wp_title", wpTitle)
	s.RegisterFunction("body_class", bodyClass)
	s.RegisterFunction("wp_nav_menu", wpNavMenu)
	return s
}

// Config returns the site configuration.
func (s *Site) Config() *config.Config { return s.cfg }

// RegisterFunction adds or replaces a host output function.
func (s *Site) RegisterFunction(name string, fn RequestFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcs[name] = fn
}

// Functions returns the registered function names in sorted order.
func (s *Site) Functions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.funcs))
	for name := range s.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Site) function(name string) (RequestFunc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.funcs[name]
	return fn, ok
}

// Request returns the request-scoped host for the given URL path.
func (s *Site) Request(urlPath string, admin bool) *Request {
	clean := path.Clean("/" + strings.TrimSpace(urlPath))
	return &Request{site: s, path: clean, admin: admin}
}

// Request is the host as seen while serving a single request.
type Request struct {
	site  *Site
	path  string
	admin bool
}

var _ Host = (*Request)(nil)

// Path returns the cleaned URL path of the request.
func (r *Request) Path() string { return r.path }

// IsFrontPage reports whether the request targets the site root.
func (r *Request) IsFrontPage() bool { return r.path == "/" }

// Slug returns the request path as a single dash-separated token, e.g.
// "/docs/intro" becomes "docs-intro". The front page has an empty slug.
func (r *Request) Slug() string {
	trimmed := strings.Trim(r.path, "/")
	if trimmed == "" {
		return ""
	}
	return strings.ReplaceAll(trimmed, "/", "-")
}

// Info implements Host.
func (r *Request) Info() Info {
	site := r.site.cfg.Site
	return Info{
		Language:    site.Lang,
		Charset:     site.Charset,
		URL:         site.URL,
		Name:        site.Title,
		Description: site.Description,
	}
}

// StylesheetDir implements Host.
func (r *Request) StylesheetDir() string { return r.site.cfg.StylesheetDir() }

// StylesheetURI implements Host.
func (r *Request) StylesheetURI() string { return r.site.cfg.ThemeAssetURL() }

// ContentDir implements Host.
func (r *Request) ContentDir() string { return r.site.cfg.ContentDir }

// IsAdmin implements Host.
func (r *Request) IsAdmin() bool { return r.admin }

// Function implements Host. The returned OutputFunc is bound to r.
func (r *Request) Function(name string) (OutputFunc, bool) {
	fn, ok := r.site.function(name)
	if !ok {
		return nil, false
	}
	return func(w io.Writer, args ...any) error {
		return fn(r, w, args...)
	}, true
}

// TemplateCandidates lists the template names tried for the request, most
// specific first.
func (r *Request) TemplateCandidates() []string {
	ext := r.site.cfg.Theme.Extension
	var names []string
	if r.IsFrontPage() {
		names = append(names, "front-page", "home")
	} else {
		names = append(names, "page-"+r.Slug(), "page")
	}
	names = append(names, "index")

	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n + ext
	}
	return out
}

// ResolveTemplate walks the template candidates and returns the absolute
// path of the first one present in the theme template directory, or "" if
// none exists.
func (r *Request) ResolveTemplate() string {
	dir := r.site.cfg.TemplateDir()
	for _, name := range r.TemplateCandidates() {
		full := filepath.Join(dir, name)
		info, err := os.Stat(full)
		if err == nil && !info.IsDir() {
			if abs, err := filepath.Abs(full); err == nil {
				return abs
			}
			return full
		}
	}
	return ""
}

// TemplateName converts a chosen template path into a name relative to the
// theme template directory.
func (r *Request) TemplateName(chosen string) (string, error) {
	dir, err := filepath.Abs(r.site.cfg.TemplateDir())
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(chosen)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(dir, abs)
	if err != nil {
		return "", fmt.Errorf("template %q is outside %q: %w", chosen, dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("template %q is outside %q", chosen, dir)
	}
	return filepath.ToSlash(rel), nil
}
