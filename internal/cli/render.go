package cli

import (
	"bytes"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/pongopress/pongopress/internal/config"
	"github.com/pongopress/pongopress/internal/host"
	"github.com/pongopress/pongopress/internal/theme"
)

// newRenderCommand creates the "render" subcommand that renders one page of the site.
func newRenderCommand(opts *Options) *cobra.Command {
	var pagePath string

	cmd := &cobra.Command{
		Use:   "render [template]",
		Short: "Render a page of the site through the theme templates",
		Long: "Render a page of the site. Without a template argument the template is chosen " +
			"from the theme hierarchy for --path, exactly as the server would.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := LoggerFromContext(cmd.Context())

			vars, err := templateVarsFromCmd(cmd, logger)
			if err != nil {
				return err
			}

			cfg, site, err := loadSiteFromOpts(opts)
			if err != nil {
				return err
			}

			var name string
			if len(args) > 0 {
				name = args[0]
			}
			rendered, err := renderPage(cfg, site, pagePath, name, vars, logger)
			if err != nil {
				return err
			}

			outPath := cmd.Flag("output").Value.String()
			if outPath == "" {
				_, writeErr := cmd.OutOrStdout().Write(rendered)
				return writeErr
			}

			if err := atomic.WriteFile(outPath, bytes.NewReader(rendered)); err != nil {
				return fmt.Errorf("write rendered page to %q: %w", outPath, err)
			}

			logger.Info("rendered page", "path", pagePath, "output", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&pagePath, "path", "/", "Request path of the page to render")
	cmd.Flags().StringP("output", "o", "", "Output file for the rendered page (if empty, prints to stdout)")
	addVarsFlags(cmd)

	return cmd
}

// renderPage runs one request lifecycle outside the HTTP server. Advisories
// printed while the environment is set up precede the page.
func renderPage(cfg *config.Config, site *host.Site, pagePath, name string, userVars map[string]any, logger *slog.Logger) ([]byte, error) {
	req := site.Request(pagePath, false)
	reg := siteHooks(cfg)
	adapter := theme.New(req, reg, themeOptions(cfg), logger)
	adapter.Bootstrap()
	if !adapter.EngineInstalled() {
		return nil, fmt.Errorf("%w at %s", theme.ErrEngineMissing, adapter.LibraryPath())
	}

	var out bytes.Buffer
	if err := reg.Init.Do(&out); err != nil {
		return nil, err
	}

	if name == "" {
		resolved := req.ResolveTemplate()
		if resolved == "" {
			return nil, fmt.Errorf("no template for %q, tried %s", req.Path(), strings.Join(req.TemplateCandidates(), ", "))
		}
		chosen := reg.TemplateInclude.Apply(resolved)
		var err error
		if name, err = req.TemplateName(chosen); err != nil {
			return nil, err
		}
		logger.Debug("template selected", "path", req.Path(), "template", name)
	}

	vars := map[string]any{
		"request": map[string]any{
			"path":  req.Path(),
			"query": map[string]any{},
		},
	}
	maps.Copy(vars, userVars)

	page, err := adapter.Render(name, vars)
	if err != nil {
		return nil, err
	}
	out.WriteString(page)
	return out.Bytes(), nil
}
