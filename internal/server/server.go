// Package server is the HTTP front controller. Every request runs the full
// host lifecycle: bootstrap the theme adapter, fire init, select a template,
// pass it through template_include and render it.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/pongopress/pongopress/internal/hooks"
	"github.com/pongopress/pongopress/internal/host"
	"github.com/pongopress/pongopress/internal/logging"
	"github.com/pongopress/pongopress/internal/theme"
)

const (
	// AdminPrefix marks requests served in the administrative context.
	AdminPrefix = "/admin"
	// AssetPrefix serves files from the themes directory.
	AssetPrefix = "/content/themes/"
	// LiveReloadPath is the websocket endpoint used for browser live reload.
	LiveReloadPath = "/_pongopress/livereload"

	shutdownTimeout = 10 * time.Second
)

// Server serves a host Site through the theme adapter.
type Server struct {
	site   *host.Site
	hooks  *hooks.Registry
	opts   theme.Options
	logger *slog.Logger
	reload *reloadHub
}

// New constructs a Server. base holds the process-wide hook callbacks; each
// request works on a clone of it.
func New(site *host.Site, base *hooks.Registry, opts theme.Options, logger *slog.Logger) *Server {
	if base == nil {
		base = hooks.NewRegistry()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		site:   site,
		hooks:  base,
		opts:   opts,
		logger: logger,
	}
}

// Handler returns the HTTP handler for the site.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	themes := filepath.Join(s.site.Config().ContentDir, "themes")
	mux.Handle(AssetPrefix, http.StripPrefix(AssetPrefix, http.FileServer(http.Dir(themes))))
	if s.reload != nil {
		mux.Handle(LiveReloadPath, s.reload)
	}
	mux.HandleFunc("/", s.servePage)
	return mux
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving site", "addr", addr, "theme", s.site.Config().Theme.Name)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %q: %w", addr, err)
	}
}

func isAdminPath(p string) bool {
	return p == AdminPrefix || strings.HasPrefix(p, AdminPrefix+"/")
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	req := s.site.Request(r.URL.Path, isAdminPath(r.URL.Path))
	logger := s.logger.With("path", req.Path())
	reg := s.hooks.Clone()
	adapter := theme.New(req, reg, s.opts, logger)
	adapter.Bootstrap()

	if req.IsAdmin() {
		s.serveAdmin(w, reg, logger)
		return
	}

	// Anything init callbacks print precedes the page.
	var preamble bytes.Buffer
	if err := reg.Init.Do(&preamble); err != nil {
		logger.Error("init failed", "error", err)
		http.Error(w, "Server error.", http.StatusInternalServerError)
		return
	}

	resolved := req.ResolveTemplate()
	if resolved == "" {
		logger.Debug("no template matches request", "candidates", req.TemplateCandidates())
		http.NotFound(w, r)
		return
	}
	chosen := reg.TemplateInclude.Apply(resolved)

	name, err := req.TemplateName(chosen)
	if err != nil {
		logger.Error("chosen template is not renderable", "template", chosen, "error", err)
		http.Error(w, "Server error.", http.StatusInternalServerError)
		return
	}

	out, err := adapter.Render(name, map[string]any{
		"request": map[string]any{
			"path":  req.Path(),
			"query": flattenQuery(r),
		},
	})
	if err != nil {
		logger.Error("error rendering page", "template", name, "error", err)
		http.Error(w, "Server error.", http.StatusInternalServerError)
		return
	}

	charset := req.Info().Charset
	if env := adapter.Environment(); env != nil {
		charset = env.Charset()
	}
	w.Header().Set("Content-Type", "text/html; charset="+charset)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(preamble.Bytes()); err != nil {
		return
	}
	if _, err := io.WriteString(w, out); err != nil {
		logger.Debug("error writing response", "error", err)
	}
}

func (s *Server) serveAdmin(w http.ResponseWriter, reg *hooks.Registry, logger *slog.Logger) {
	var notices bytes.Buffer
	if err := reg.AdminNotices.Do(&notices); err != nil {
		logger.Error("admin notices failed", "error", err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><title>Dashboard</title></head><body>%s<h1>Dashboard</h1></body></html>\n", notices.String())
}

func flattenQuery(r *http.Request) map[string]any {
	out := make(map[string]any)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			out[key] = values[0]
		}
	}
	return out
}
