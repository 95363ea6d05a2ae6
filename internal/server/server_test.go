package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pongopress/pongopress/internal/config"
	"github.com/pongopress/pongopress/internal/hooks"
	"github.com/pongopress/pongopress/internal/host"
	"github.com/pongopress/pongopress/internal/theme"
)

func newTestServer(t *testing.T, templates map[string]string, base *hooks.Registry) (*Server, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.ContentDir = t.TempDir()
	cfg.Site.Title = "Example"
	cfg.Site.URL = "https://example.com"
	require.NoError(t, os.MkdirAll(cfg.TemplateDir(), 0o755))
	require.NoError(t, os.MkdirAll(cfg.LibraryDir(), 0o755))
	for name, body := range templates {
		full := filepath.Join(cfg.TemplateDir(), name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
	}
	opts := theme.Options{TemplateDir: cfg.Theme.TemplateDir, LibraryDir: cfg.Engine.Library}
	return New(host.NewSite(cfg), base, opts, nil), cfg
}

func get(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestServePageSelectsTemplate(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{
		"index.html":      `index {{ request.path }}`,
		"front-page.html": `<head>{{ wp_head() }}</head><body {{ body_class() }}>{{ site.title }}</body>`,
		"page-about.html": `about {{ wp_title() }} {{ request.query.ref }}`,
	}, nil)
	h := srv.Handler()

	rec := get(t, h, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=UTF-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `<head><meta charset="UTF-8"></head><body class="home">Example</body>`, rec.Body.String())

	rec = get(t, h, http.MethodGet, "/about?ref=nav")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "about About | Example nav", rec.Body.String())

	rec = get(t, h, http.MethodGet, "/contact")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "index /contact", rec.Body.String())

	rec = get(t, h, http.MethodHead, "/contact")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestServePageCharset(t *testing.T) {
	srv, cfg := newTestServer(t, map[string]string{
		"index.html": `{{ site.charset }} café`,
	}, nil)
	cfg.Site.Charset = "ISO-8859-1"

	rec := get(t, srv.Handler(), http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=ISO-8859-1", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ISO-8859-1 caf\xe9", rec.Body.String())
}

func TestServePageStatusCodes(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{
		"page-broken.html": `{% if %}`,
	}, nil)
	h := srv.Handler()

	assert.Equal(t, http.StatusNotFound, get(t, h, http.MethodGet, "/nothing").Code)
	assert.Equal(t, http.StatusInternalServerError, get(t, h, http.MethodGet, "/broken").Code)

	rec := get(t, h, http.MethodPost, "/broken")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
}

func TestServePageWithoutEngineLibrary(t *testing.T) {
	srv, cfg := newTestServer(t, map[string]string{"index.html": "x"}, nil)
	require.NoError(t, os.RemoveAll(cfg.LibraryDir()))

	rec := get(t, srv.Handler(), http.MethodGet, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServeAdminNotice(t *testing.T) {
	srv, cfg := newTestServer(t, nil, nil)
	h := srv.Handler()

	rec := get(t, h, http.MethodGet, "/admin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `class="error"`)

	require.NoError(t, os.RemoveAll(cfg.LibraryDir()))
	rec = get(t, h, http.MethodGet, "/admin/settings")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<div class="error"><p><b>Warning:</b> pongopress cannot find the template engine library`)
	assert.Contains(t, rec.Body.String(), "<h1>Dashboard</h1>")
}

func TestServePageHooks(t *testing.T) {
	base := hooks.NewRegistry()
	base.GlobalFunctions.Add(func(list []any) []any { return append(list, 42) })
	base.PostTemplateVars.Add(func(vars map[string]any) map[string]any {
		vars["greeting"] = "hello"
		return vars
	})
	srv, cfg := newTestServer(t, map[string]string{
		"index.html":     "index",
		"alt/index.html": "alt {{ greeting }}",
	}, base)
	base.TemplateInclude.AddWithPriority(5, func(string) string {
		return filepath.Join(cfg.TemplateDir(), "alt", "index.html")
	})

	rec := get(t, srv.Handler(), http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.HasSuffix(body, "alt hello"), body)
	assert.Equal(t, 1, strings.Count(body, `could not add "42"`))
}

func TestServeAssets(t *testing.T) {
	srv, cfg := newTestServer(t, nil, nil)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.StylesheetDir(), "style.css"), []byte("body{}"), 0o644))

	rec := get(t, srv.Handler(), http.MethodGet, "/content/themes/default/style.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())
}

func TestLiveReload(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{
		"index.html": `{{ livereload_script() }}`,
	}, nil)
	srv.EnableLiveReload()
	srv.EnableLiveReload()

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	rec := get(t, srv.Handler(), http.MethodGet, "/")
	assert.Contains(t, rec.Body.String(), LiveReloadPath)
	assert.Contains(t, rec.Body.String(), "<script>")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+LiveReloadPath, nil)
	require.NoError(t, err)
	defer func() { _ = conn.CloseNow() }()

	require.Eventually(t, func() bool { return srv.reload.clients() == 1 }, 5*time.Second, 10*time.Millisecond)
	srv.reload.broadcast()

	typ, msg, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	assert.Equal(t, "reload", string(msg))
}

func TestIsAdminPath(t *testing.T) {
	assert.True(t, isAdminPath("/admin"))
	assert.True(t, isAdminPath("/admin/x"))
	assert.False(t, isAdminPath("/administrator"))
	assert.False(t, isAdminPath("/"))
}
