// Package theme delegates page rendering to the template engine. An Adapter
// is built for each request: it wires itself into the host's extension
// points, lazily sets up the engine with the site globals and helper
// functions, records the template the host selected and renders templates on
// behalf of theme code.
package theme

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pongopress/pongopress/internal/engine"
	"github.com/pongopress/pongopress/internal/hooks"
	"github.com/pongopress/pongopress/internal/host"
	"github.com/pongopress/pongopress/internal/logging"
)

var (
	// ErrNotReady is returned by Render before Setup has completed.
	ErrNotReady = errors.New("template environment is not initialized")
	// ErrEngineMissing reports that the engine library directory is absent.
	ErrEngineMissing = errors.New("template engine library not found")
)

// DefaultFunctions lists the host functions exposed to templates unless the
// global functions filter changes the list.
var DefaultFunctions = []string{
	"wp_head",
	"wp_footer",
	"wp_title",
	"body_class",
	"wp_nav_menu",
}

// Options configures where the Adapter finds templates.
type Options struct {
	// TemplateDir is the template directory relative to the theme directory.
	TemplateDir string
	// LibraryDir is the engine library directory, relative to the host
	// content directory unless absolute.
	LibraryDir string
	// Debug disables template caching.
	Debug bool
	// TrimBlocks removes the first newline after a block tag.
	TrimBlocks bool
	// LStripBlocks strips leading whitespace before a block tag.
	LStripBlocks bool
}

// Adapter connects one request of the host to the template engine.
type Adapter struct {
	host   host.Host
	hooks  *hooks.Registry
	opts   Options
	logger *slog.Logger

	env    *engine.Environment
	chosen string
}

// New constructs an Adapter. Nothing is wired until Bootstrap is called.
func New(h host.Host, reg *hooks.Registry, opts Options, logger *slog.Logger) *Adapter {
	if reg == nil {
		reg = hooks.NewRegistry()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Adapter{
		host:   h,
		hooks:  reg,
		opts:   opts,
		logger: logger,
	}
}

// Hooks returns the registry the Adapter is wired into.
func (a *Adapter) Hooks() *hooks.Registry { return a.hooks }

// LibraryPath returns the expected location of the engine library.
func (a *Adapter) LibraryPath() string {
	if filepath.IsAbs(a.opts.LibraryDir) {
		return a.opts.LibraryDir
	}
	return filepath.Join(a.host.ContentDir(), a.opts.LibraryDir)
}

// TemplateDir returns the theme template directory.
func (a *Adapter) TemplateDir() string {
	return filepath.Join(a.host.StylesheetDir(), a.opts.TemplateDir)
}

// EngineInstalled reports whether the engine library directory exists. It
// only checks the filesystem; nothing is loaded.
func (a *Adapter) EngineInstalled() bool {
	info, err := os.Stat(a.LibraryPath())
	return err == nil && info.IsDir()
}

// Bootstrap registers the Adapter's callbacks. In an admin context it only
// checks for the engine library and, if it is missing, queues the notice.
// Otherwise Setup runs on init and ObserveTemplate watches template_include.
func (a *Adapter) Bootstrap() {
	if a.host.IsAdmin() {
		if !a.EngineInstalled() {
			a.hooks.AdminNotices.AddWithPriority(0, a.writeMissingNotice)
		}
		return
	}

	if !a.EngineInstalled() {
		a.logger.Warn("template engine library not found, rendering is not wired", "path", a.LibraryPath())
		return
	}

	a.hooks.Init.AddWithPriority(0, a.Setup)
	a.hooks.TemplateInclude.Add(a.ObserveTemplate)
}

func (a *Adapter) writeMissingNotice(w io.Writer) error {
	return MissingEngineNotice(a.LibraryPath()).Render(context.Background(), w)
}

// Setup constructs the engine rooted at the theme template directory and
// registers the global variables and functions. Advisory messages about
// rejected functions are written to w.
func (a *Adapter) Setup(w io.Writer) error {
	if w == nil {
		w = io.Discard
	}

	env, err := engine.New(engine.Options{
		Name:         "theme",
		TemplateDir:  a.TemplateDir(),
		LibraryDir:   a.LibraryPath(),
		Charset:      a.host.Info().Charset,
		Debug:        a.opts.Debug,
		TrimBlocks:   a.opts.TrimBlocks,
		LStripBlocks: a.opts.LStripBlocks,
	})
	if err != nil {
		return fmt.Errorf("set up template environment: %w", err)
	}

	for name, value := range a.BuildVariables() {
		env.AddGlobal(name, value)
	}
	for name, fn := range a.BuildFunctions(w) {
		env.AddFunction(name, fn)
	}

	a.env = env
	a.logger.Debug("template environment ready",
		"search_path", env.SearchPath(),
		"functions", env.Functions(),
	)
	return nil
}

// Ready reports whether Setup has completed.
func (a *Adapter) Ready() bool { return a.env != nil }

// Environment returns the engine environment, or nil before Setup.
func (a *Adapter) Environment() *engine.Environment { return a.env }

// DefaultVariables returns the site globals seeded from host metadata.
func (a *Adapter) DefaultVariables() map[string]any {
	info := a.host.Info()
	return map[string]any{
		"site": map[string]any{
			"lang":            info.Language,
			"charset":         info.Charset,
			"url":             info.URL,
			"theme_asset_url": a.host.StylesheetURI(),
			"title":           info.Name,
			"description":     info.Description,
		},
	}
}

// BuildVariables returns the default globals after the site variables
// filter has had its say. The filter's return value is used as is.
func (a *Adapter) BuildVariables() map[string]any {
	return a.hooks.SiteVariables.Apply(a.DefaultVariables())
}

// FunctionList returns the default function names after the global
// functions filter. Entries may be of any type.
func (a *Adapter) FunctionList() []any {
	list := make([]any, len(DefaultFunctions))
	for i, name := range DefaultFunctions {
		list[i] = name
	}
	return a.hooks.GlobalFunctions.Apply(list)
}

// BuildFunctions wraps every valid entry of FunctionList into a template
// callable. Each entry that is not a string, or names no host function,
// produces one advisory line on w, also logged at warn level, and is
// skipped.
func (a *Adapter) BuildFunctions(w io.Writer) map[string]engine.Function {
	if w == nil {
		w = io.Discard
	}
	w = io.MultiWriter(w, logging.NewWriter(a.logger, "global function rejected"))
	out := make(map[string]engine.Function)
	for _, entry := range a.FunctionList() {
		name, ok := entry.(string)
		if !ok {
			advise(w, fmt.Sprintf("Each entry in the global functions list must be a string containing a function name, could not add %q", fmt.Sprint(entry)))
			continue
		}
		fn, ok := a.host.Function(name)
		if !ok {
			advise(w, fmt.Sprintf("Host function %q does not exist, could not add it", name))
			continue
		}
		out[name] = Capture(fn)
	}
	return out
}

func advise(w io.Writer, msg string) {
	_, _ = fmt.Fprintln(w, msg)
}

// ObserveTemplate records the template path the host selected and returns
// it unchanged.
func (a *Adapter) ObserveTemplate(path string) string {
	a.chosen = path
	return path
}

// ChosenTemplate returns the path last passed to ObserveTemplate.
func (a *Adapter) ChosenTemplate() string { return a.chosen }

// Render passes vars through the post template vars filter and renders the
// named template with the result. Engine errors are returned unchanged.
func (a *Adapter) Render(name string, vars map[string]any) (string, error) {
	vars = a.hooks.PostTemplateVars.Apply(vars)
	if a.env == nil {
		return "", ErrNotReady
	}
	return a.env.Render(name, vars)
}
