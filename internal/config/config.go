// Package config contains the loader and strongly typed model for site.yaml.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	envparse "github.com/caarlos0/env/v11"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/pongopress/pongopress/internal/env"
)

const (
	// DefaultPath is the default location of the site configuration file.
	DefaultPath = "site.yaml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "PONGOPRESS_"
)

// Config describes a site served by pongopress. It mirrors site.yaml after
// environment overrides have been applied.
type Config struct {
	// Site holds the metadata exposed to templates as the "site" global.
	Site SiteConfig `yaml:"site" envPrefix:"SITE_"`
	// ContentDir is the host content directory, relative to the config file.
	ContentDir string `yaml:"contentDir,omitempty" env:"CONTENT_DIR"`
	// Theme selects the active theme inside ContentDir/themes.
	Theme ThemeConfig `yaml:"theme,omitempty" envPrefix:"THEME_"`
	// Engine configures the template engine.
	Engine EngineConfig `yaml:"engine,omitempty" envPrefix:"ENGINE_"`
	// Server configures the HTTP front controller.
	Server ServerConfig `yaml:"server,omitempty" envPrefix:"SERVER_"`
	// EnvFiles lists .env files loaded before overrides are applied.
	EnvFiles []string `yaml:"envFiles,omitempty"`
	// Head lists markup snippets printed by wp_head.
	Head []string `yaml:"head,omitempty"`
	// Footer lists markup snippets printed by wp_footer.
	Footer []string `yaml:"footer,omitempty"`
	// Menus maps a menu name to its items, printed by wp_nav_menu.
	Menus map[string][]MenuItem `yaml:"menus,omitempty"`
	// Variables are extra global variables added next to "site".
	Variables map[string]any `yaml:"variables,omitempty"`
	// Functions, when set, replaces the default list of global functions.
	// Entries are expected to be host function names.
	Functions []any `yaml:"functions,omitempty"`

	// Root is the directory containing the loaded config file.
	Root string `yaml:"-"`
}

// SiteConfig is the host site metadata.
type SiteConfig struct {
	// Lang is a BCP 47 language tag such as "en-US".
	Lang string `yaml:"lang,omitempty" env:"LANG"`
	// Charset is the output character set name, e.g. "UTF-8".
	Charset string `yaml:"charset,omitempty" env:"CHARSET"`
	// URL is the public base URL of the site.
	URL string `yaml:"url,omitempty" env:"URL"`
	// Title is the site name.
	Title string `yaml:"title,omitempty" env:"TITLE"`
	// Description is the site tagline.
	Description string `yaml:"description,omitempty" env:"DESCRIPTION"`
}

// ThemeConfig selects and describes the active theme.
type ThemeConfig struct {
	// Name is the theme directory name under ContentDir/themes.
	Name string `yaml:"name,omitempty" env:"NAME"`
	// TemplateDir is the template directory inside the theme.
	TemplateDir string `yaml:"templateDir,omitempty" env:"TEMPLATE_DIR"`
	// Extension is the template file extension used during template selection.
	Extension string `yaml:"extension,omitempty" env:"EXTENSION"`
	// AssetURL overrides the public URL of the theme directory.
	AssetURL string `yaml:"assetURL,omitempty" env:"ASSET_URL"`
}

// EngineConfig configures the pongo2 template set.
type EngineConfig struct {
	// Library is the shared engine library directory, relative to ContentDir.
	// Its presence is required.
	Library string `yaml:"library,omitempty" env:"LIBRARY"`
	// Debug disables template caching.
	Debug bool `yaml:"debug,omitempty" env:"DEBUG"`
	// TrimBlocks removes the first newline after a block tag.
	TrimBlocks bool `yaml:"trimBlocks,omitempty" env:"TRIM_BLOCKS"`
	// LStripBlocks strips leading whitespace before a block tag.
	LStripBlocks bool `yaml:"lstripBlocks,omitempty" env:"LSTRIP_BLOCKS"`
}

// ServerConfig configures the HTTP front controller.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr,omitempty" env:"ADDR"`
	// Watch enables template watching and browser live reload.
	Watch bool `yaml:"watch,omitempty" env:"WATCH"`
}

// MenuItem is a single navigation menu entry.
type MenuItem struct {
	// Title is the link label.
	Title string `yaml:"title"`
	// URL is the link target.
	URL string `yaml:"url"`
}

// LoadOptions influences how the config file is loaded.
type LoadOptions struct {
	// Environment replaces the process environment when non-nil.
	Environment env.Vars
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			Lang:    "en-US",
			Charset: "UTF-8",
			URL:     "http://localhost:8080",
			Title:   "pongopress",
		},
		ContentDir: "content",
		Theme: ThemeConfig{
			Name:        "default",
			TemplateDir: "templates",
			Extension:   ".html",
		},
		Engine: EngineConfig{
			Library: "pongo2",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads the config file at path, applies .env files and PONGOPRESS_*
// overrides, resolves paths and validates the result.
func Load(path string, opts LoadOptions) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", absPath, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", absPath, err)
	}
	cfg.Root = filepath.Dir(absPath)

	osVars := opts.Environment
	if osVars == nil {
		osVars = env.FromOS()
	}
	fileVars, err := env.LoadEnvFiles(cfg.Root, cfg.EnvFiles)
	if err != nil {
		return nil, err
	}

	if err := applyOverrides(cfg, env.Merge(fileVars, osVars)); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides fills cfg from PONGOPRESS_* variables via caarlos0/env.
func applyOverrides(cfg *Config, vars env.Vars) error {
	err := envparse.ParseWithOptions(cfg, envparse.Options{
		Prefix:      EnvPrefix,
		Environment: vars,
	})
	if err != nil {
		return fmt.Errorf("apply environment overrides: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	if c.Root == "" {
		if wd, err := os.Getwd(); err == nil {
			c.Root = wd
		}
	}
	if c.ContentDir != "" && !filepath.IsAbs(c.ContentDir) {
		c.ContentDir = filepath.Join(c.Root, c.ContentDir)
	}
	c.Site.URL = strings.TrimRight(strings.TrimSpace(c.Site.URL), "/")
	ext := strings.TrimSpace(c.Theme.Extension)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	c.Theme.Extension = ext
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ContentDir) == "" {
		errs = append(errs, errors.New("contentDir must be set"))
	}
	if strings.TrimSpace(c.Theme.Name) == "" {
		errs = append(errs, errors.New("theme.name must be set"))
	}
	if strings.ContainsAny(c.Theme.Name, `/\`) {
		errs = append(errs, fmt.Errorf("theme.name %q must be a directory name", c.Theme.Name))
	}
	if strings.TrimSpace(c.Theme.TemplateDir) == "" {
		errs = append(errs, errors.New("theme.templateDir must be set"))
	}
	if strings.TrimSpace(c.Engine.Library) == "" {
		errs = append(errs, errors.New("engine.library must be set"))
	}
	if _, err := language.Parse(c.Site.Lang); err != nil {
		errs = append(errs, fmt.Errorf("site.lang %q: %w", c.Site.Lang, err))
	}
	if _, err := htmlindex.Get(c.Site.Charset); err != nil {
		errs = append(errs, fmt.Errorf("site.charset %q: %w", c.Site.Charset, err))
	}
	if u, err := url.Parse(c.Site.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("site.url %q must be an absolute URL", c.Site.URL))
	}
	return errors.Join(errs...)
}

// StylesheetDir returns the filesystem directory of the active theme.
func (c *Config) StylesheetDir() string {
	return filepath.Join(c.ContentDir, "themes", c.Theme.Name)
}

// TemplateDir returns the filesystem directory holding theme templates.
func (c *Config) TemplateDir() string {
	return filepath.Join(c.StylesheetDir(), c.Theme.TemplateDir)
}

// LibraryDir returns the filesystem directory of the shared engine library.
func (c *Config) LibraryDir() string {
	if filepath.IsAbs(c.Engine.Library) {
		return c.Engine.Library
	}
	return filepath.Join(c.ContentDir, c.Engine.Library)
}

// ThemeAssetURL returns the public URL of the active theme directory.
func (c *Config) ThemeAssetURL() string {
	if u := strings.TrimSpace(c.Theme.AssetURL); u != "" {
		return strings.TrimRight(u, "/")
	}
	return c.Site.URL + "/content/themes/" + url.PathEscape(c.Theme.Name)
}
