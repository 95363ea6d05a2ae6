package theme

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pongopress/pongopress/internal/config"
	"github.com/pongopress/pongopress/internal/hooks"
	"github.com/pongopress/pongopress/internal/host"
)

type fixture struct {
	cfg  *config.Config
	site *host.Site
}

func newFixture(t testing.TB, templates map[string]string) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.ContentDir = t.TempDir()
	cfg.Site = config.SiteConfig{
		Lang:        "en-GB",
		Charset:     "UTF-8",
		URL:         "https://example.com",
		Title:       "Example",
		Description: "Just another site",
	}
	require.NoError(t, os.MkdirAll(cfg.TemplateDir(), 0o755))
	require.NoError(t, os.MkdirAll(cfg.LibraryDir(), 0o755))
	for name, body := range templates {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.TemplateDir(), name), []byte(body), 0o644))
	}
	return &fixture{cfg: cfg, site: host.NewSite(cfg)}
}

func (f *fixture) adapter(path string, admin bool, reg *hooks.Registry) *Adapter {
	return New(f.site.Request(path, admin), reg, Options{
		TemplateDir: f.cfg.Theme.TemplateDir,
		LibraryDir:  f.cfg.Engine.Library,
	}, nil)
}

func expectedSite() map[string]any {
	return map[string]any{
		"lang":            "en-GB",
		"charset":         "UTF-8",
		"url":             "https://example.com",
		"theme_asset_url": "https://example.com/content/themes/default",
		"title":           "Example",
		"description":     "Just another site",
	}
}

func TestBuildVariablesDefault(t *testing.T) {
	f := newFixture(t, nil)
	a := f.adapter("/", false, nil)

	assert.Equal(t, map[string]any{"site": expectedSite()}, a.BuildVariables())
}

func TestBuildVariablesHookAddsKeys(t *testing.T) {
	f := newFixture(t, nil)
	reg := hooks.NewRegistry()
	reg.SiteVariables.Add(func(vars map[string]any) map[string]any {
		vars["user"] = map[string]any{"name": "Alice"}
		return vars
	})
	a := f.adapter("/", false, reg)

	vars := a.BuildVariables()
	assert.Equal(t, expectedSite(), vars["site"])
	assert.Equal(t, map[string]any{"name": "Alice"}, vars["user"])
	assert.Len(t, vars, 2)
}

func TestBuildVariablesHookReplacesMapping(t *testing.T) {
	f := newFixture(t, nil)
	reg := hooks.NewRegistry()
	reg.SiteVariables.Add(func(map[string]any) map[string]any {
		return map[string]any{"only": true}
	})

	assert.Equal(t, map[string]any{"only": true}, f.adapter("/", false, reg).BuildVariables())
}

func TestBuildFunctionsSkipsInvalidEntries(t *testing.T) {
	f := newFixture(t, nil)
	reg := hooks.NewRegistry()
	reg.GlobalFunctions.Add(func([]any) []any {
		return []any{"wp_head", 42, "wp_footer"}
	})
	a := f.adapter("/", false, reg)

	var advisories bytes.Buffer
	fns := a.BuildFunctions(&advisories)

	require.Len(t, fns, 2)
	assert.Contains(t, fns, "wp_head")
	assert.Contains(t, fns, "wp_footer")
	lines := strings.Split(strings.TrimSpace(advisories.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `could not add "42"`)
}

func TestBuildFunctionsUnknownName(t *testing.T) {
	f := newFixture(t, nil)
	reg := hooks.NewRegistry()
	reg.GlobalFunctions.Add(func(list []any) []any {
		return append(list, "no_such_function")
	})
	a := f.adapter("/", false, reg)

	var advisories bytes.Buffer
	fns := a.BuildFunctions(&advisories)
	assert.Len(t, fns, len(DefaultFunctions))
	assert.Equal(t, 1, strings.Count(advisories.String(), "\n"))
	assert.Contains(t, advisories.String(), "no_such_function")
}

func TestCapture(t *testing.T) {
	fn := Capture(func(w io.Writer, args ...any) error {
		_, err := io.WriteString(w, "<head>")
		for _, a := range args {
			_, _ = io.WriteString(w, a.(string))
		}
		return err
	})

	out, err := fn("x", "y")
	require.NoError(t, err)
	assert.Equal(t, "<head>xy", out)

	boom := errors.New("boom")
	_, err = Capture(func(io.Writer, ...any) error { return boom })()
	assert.ErrorIs(t, err, boom)
}

func TestObserveTemplate(t *testing.T) {
	f := newFixture(t, nil)
	a := f.adapter("/", false, nil)

	assert.Equal(t, "", a.ChosenTemplate())
	assert.Equal(t, "/themes/x/page.html", a.ObserveTemplate("/themes/x/page.html"))
	assert.Equal(t, "/themes/x/page.html", a.ChosenTemplate())
}

func TestBootstrapNormalContext(t *testing.T) {
	f := newFixture(t, map[string]string{
		"index.html": `<html {{ body_class() }}><head>{{ wp_head() }}<title>{{ wp_title("-") }}</title></head>{{ site.title }}|{{ greeting }}</html>`,
	})
	reg := hooks.NewRegistry()
	a := f.adapter("/about", false, reg)

	a.Bootstrap()
	assert.Equal(t, 1, reg.Init.Len())
	assert.Equal(t, 1, reg.TemplateInclude.Len())
	assert.Equal(t, 0, reg.AdminNotices.Len())
	assert.False(t, a.Ready())

	_, err := a.Render("index.html", nil)
	assert.ErrorIs(t, err, ErrNotReady)

	var out bytes.Buffer
	require.NoError(t, reg.Init.Do(&out))
	assert.Empty(t, out.String())
	assert.True(t, a.Ready())

	chosen := filepath.Join(f.cfg.TemplateDir(), "index.html")
	assert.Equal(t, chosen, reg.TemplateInclude.Apply(chosen))
	assert.Equal(t, chosen, a.ChosenTemplate())

	html, err := a.Render("index.html", map[string]any{"greeting": "hi"})
	require.NoError(t, err)
	assert.Contains(t, html, `<html class="page page-about">`)
	assert.Contains(t, html, `<meta charset="UTF-8">`)
	assert.Contains(t, html, `<title>About - Example</title>`)
	assert.Contains(t, html, `Example|hi`)
}

func TestSetupWritesAdvisoriesInline(t *testing.T) {
	f := newFixture(t, nil)
	reg := hooks.NewRegistry()
	reg.GlobalFunctions.Add(func(list []any) []any {
		return append(list, 3.5)
	})
	a := f.adapter("/", false, reg)

	var out bytes.Buffer
	require.NoError(t, a.Setup(&out))
	assert.Contains(t, out.String(), `could not add "3.5"`)
	assert.ElementsMatch(t, DefaultFunctions, a.Environment().Functions())
	assert.Equal(t, map[string]any{"site": expectedSite()}, a.Environment().Globals())
}

func TestSetupFailsWithoutTemplateDir(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.RemoveAll(f.cfg.TemplateDir()))
	a := f.adapter("/", false, nil)

	err := a.Setup(nil)
	require.Error(t, err)
	assert.False(t, a.Ready())
}

func TestRenderAppliesPostTemplateVarsOnce(t *testing.T) {
	f := newFixture(t, map[string]string{
		"greet.html": `{{ greeting }} {{ extra }}`,
	})
	reg := hooks.NewRegistry()
	calls := 0
	var seen map[string]any
	reg.PostTemplateVars.Add(func(vars map[string]any) map[string]any {
		calls++
		seen = vars
		return map[string]any{"greeting": vars["greeting"], "extra": "injected"}
	})
	a := f.adapter("/", false, reg)
	require.NoError(t, a.Setup(nil))

	input := map[string]any{"greeting": "hello"}
	out, err := a.Render("greet.html", input)
	require.NoError(t, err)
	assert.Equal(t, "hello injected", out)
	assert.Equal(t, 1, calls)
	assert.Equal(t, input, seen)
}

func TestRenderPropagatesEngineErrors(t *testing.T) {
	f := newFixture(t, map[string]string{
		"broken.html": `{% for %}`,
	})
	a := f.adapter("/", false, nil)
	require.NoError(t, a.Setup(nil))

	_, err := a.Render("missing.html", nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotReady)

	_, err = a.Render("broken.html", nil)
	assert.Error(t, err)
}

func TestBootstrapAdminMissingEngine(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.RemoveAll(f.cfg.LibraryDir()))
	reg := hooks.NewRegistry()
	a := f.adapter("/admin", true, reg)

	assert.False(t, a.EngineInstalled())
	a.Bootstrap()
	assert.Equal(t, 0, reg.Init.Len())
	assert.Equal(t, 0, reg.TemplateInclude.Len())
	require.Equal(t, 1, reg.AdminNotices.Len())

	var out bytes.Buffer
	require.NoError(t, reg.AdminNotices.Do(&out))
	assert.Equal(t,
		`<div class="error"><p><b>Warning:</b> pongopress cannot find the template engine library at `+
			f.cfg.LibraryDir()+`. This is required!</p></div>`,
		out.String())
}

func TestBootstrapAdminWithEngine(t *testing.T) {
	f := newFixture(t, nil)
	reg := hooks.NewRegistry()
	f.adapter("/admin", true, reg).Bootstrap()

	assert.Equal(t, 0, reg.AdminNotices.Len())
	assert.Equal(t, 0, reg.Init.Len())
}

func TestBootstrapNormalContextMissingEngine(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.RemoveAll(f.cfg.LibraryDir()))
	reg := hooks.NewRegistry()
	a := f.adapter("/", false, reg)

	a.Bootstrap()
	assert.Equal(t, 0, reg.Init.Len())
	assert.Equal(t, 0, reg.AdminNotices.Len())

	_, err := a.Render("index.html", nil)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestLibraryPathAbsolute(t *testing.T) {
	f := newFixture(t, nil)
	lib := t.TempDir()
	a := New(f.site.Request("/", false), nil, Options{TemplateDir: "templates", LibraryDir: lib}, nil)
	assert.Equal(t, lib, a.LibraryPath())
	assert.True(t, a.EngineInstalled())
	assert.NotNil(t, a.Hooks())
}
