// Package hooks implements the named extension points through which themes
// and extensions inspect or replace values before pongopress uses them.
//
// A Filter passes a payload through its callbacks in order, each return value
// replacing the payload. An Action runs side-effecting callbacks in order.
// Callbacks run by ascending priority and, within one priority, in
// registration order.
package hooks

import (
	"io"
	"sort"
	"sync"
)

// DefaultPriority is the priority used by Add.
const DefaultPriority = 10

// Names of the extension points exposed on a Registry.
const (
	SiteVariables    = "twig_site_variables"
	GlobalFunctions  = "twig_global_functions"
	PostTemplateVars = "twig_post_template_vars"
	TemplateInclude  = "template_include"
	Init             = "init"
	AdminNotices     = "admin_notices"
)

type entry[F any] struct {
	priority int
	fn       F
}

type callbacks[F any] struct {
	mu      sync.RWMutex
	entries []entry[F]
}

func (c *callbacks[F]) add(priority int, fn F) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Insert after every entry with priority <= the new one so that equal
	// priorities keep registration order.
	i := sort.Search(len(c.entries), func(i int) bool { return c.entries[i].priority > priority })
	c.entries = append(c.entries, entry[F]{})
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = entry[F]{priority: priority, fn: fn}
}

func (c *callbacks[F]) snapshot() []entry[F] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]entry[F], len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *callbacks[F]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Filter is a named chain of value transformations.
type Filter[T any] struct {
	name string
	cbs  callbacks[func(T) T]
}

// NewFilter returns an empty filter.
func NewFilter[T any](name string) *Filter[T] {
	return &Filter[T]{name: name}
}

// Name returns the extension point name.
func (f *Filter[T]) Name() string { return f.name }

// Add registers fn at DefaultPriority.
func (f *Filter[T]) Add(fn func(T) T) {
	f.AddWithPriority(DefaultPriority, fn)
}

// AddWithPriority registers fn to run at the given priority.
func (f *Filter[T]) AddWithPriority(priority int, fn func(T) T) {
	if fn == nil {
		return
	}
	f.cbs.add(priority, fn)
}

// Len reports the number of registered callbacks.
func (f *Filter[T]) Len() int { return f.cbs.len() }

// Apply runs value through every callback and returns the final result.
// With no callbacks registered it returns value as is.
func (f *Filter[T]) Apply(value T) T {
	for _, e := range f.cbs.snapshot() {
		value = e.fn(value)
	}
	return value
}

func (f *Filter[T]) clone() *Filter[T] {
	cp := NewFilter[T](f.name)
	cp.cbs.entries = f.cbs.snapshot()
	return cp
}

// ActionFunc is a side-effecting callback. Output it produces goes to w.
type ActionFunc func(w io.Writer) error

// Action is a named list of side-effecting callbacks.
type Action struct {
	name string
	cbs  callbacks[ActionFunc]
}

// NewAction returns an empty action.
func NewAction(name string) *Action {
	return &Action{name: name}
}

// Name returns the extension point name.
func (a *Action) Name() string { return a.name }

// Add registers fn at DefaultPriority.
func (a *Action) Add(fn ActionFunc) {
	a.AddWithPriority(DefaultPriority, fn)
}

// AddWithPriority registers fn to run at the given priority.
func (a *Action) AddWithPriority(priority int, fn ActionFunc) {
	if fn == nil {
		return
	}
	a.cbs.add(priority, fn)
}

// Len reports the number of registered callbacks.
func (a *Action) Len() int { return a.cbs.len() }

// Do runs every callback in order, stopping at the first error.
func (a *Action) Do(w io.Writer) error {
	if w == nil {
		w = io.Discard
	}
	for _, e := range a.cbs.snapshot() {
		if err := e.fn(w); err != nil {
			return err
		}
	}
	return nil
}

func (a *Action) clone() *Action {
	cp := NewAction(a.name)
	cp.cbs.entries = a.cbs.snapshot()
	return cp
}

// Registry groups the extension points used while serving one request.
type Registry struct {
	// SiteVariables filters the global variable mapping before registration.
	SiteVariables *Filter[map[string]any]
	// GlobalFunctions filters the list of host function names to expose.
	GlobalFunctions *Filter[[]any]
	// PostTemplateVars filters the variables of each render call.
	PostTemplateVars *Filter[map[string]any]
	// TemplateInclude filters the template path chosen by the host.
	TemplateInclude *Filter[string]
	// Init fires once the host has finished loading, outside admin contexts.
	Init *Action
	// AdminNotices fires while the admin notice area is written.
	AdminNotices *Action
}

// NewRegistry returns a Registry with every extension point empty.
func NewRegistry() *Registry {
	return &Registry{
		SiteVariables:    NewFilter[map[string]any](SiteVariables),
		GlobalFunctions:  NewFilter[[]any](GlobalFunctions),
		PostTemplateVars: NewFilter[map[string]any](PostTemplateVars),
		TemplateInclude:  NewFilter[string](TemplateInclude),
		Init:             NewAction(Init),
		AdminNotices:     NewAction(AdminNotices),
	}
}

// Clone returns a Registry holding copies of every callback list. Callbacks
// added to the clone do not affect r.
func (r *Registry) Clone() *Registry {
	return &Registry{
		SiteVariables:    r.SiteVariables.clone(),
		GlobalFunctions:  r.GlobalFunctions.clone(),
		PostTemplateVars: r.PostTemplateVars.clone(),
		TemplateInclude:  r.TemplateInclude.clone(),
		Init:             r.Init.clone(),
		AdminNotices:     r.AdminNotices.clone(),
	}
}
