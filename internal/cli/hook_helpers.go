package cli

import (
	"maps"
	"slices"

	"github.com/pongopress/pongopress/internal/config"
	"github.com/pongopress/pongopress/internal/hooks"
	"github.com/pongopress/pongopress/internal/theme"
)

// siteHooks returns a registry carrying the extensions declared in site.yaml:
// extra global variables and a replacement global function list.
func siteHooks(cfg *config.Config) *hooks.Registry {
	reg := hooks.NewRegistry()
	if len(cfg.Variables) > 0 {
		extra := maps.Clone(cfg.Variables)
		reg.SiteVariables.Add(func(vars map[string]any) map[string]any {
			if vars == nil {
				vars = make(map[string]any, len(extra))
			}
			maps.Copy(vars, extra)
			return vars
		})
	}
	if len(cfg.Functions) > 0 {
		list := slices.Clone(cfg.Functions)
		reg.GlobalFunctions.Add(func([]any) []any {
			return slices.Clone(list)
		})
	}
	return reg
}

// themeOptions maps the engine and theme settings onto adapter options.
func themeOptions(cfg *config.Config) theme.Options {
	return theme.Options{
		TemplateDir:  cfg.Theme.TemplateDir,
		LibraryDir:   cfg.Engine.Library,
		Debug:        cfg.Engine.Debug,
		TrimBlocks:   cfg.Engine.TrimBlocks,
		LStripBlocks: cfg.Engine.LStripBlocks,
	}
}
