package cli

import (
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pongopress/pongopress/internal/theme"
)

// newListTemplatesCommand creates the "list templates" subcommand.
func newListTemplatesCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List templates of the active theme",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadSiteFromOpts(opts)
			if err != nil {
				return err
			}

			root := cfg.TemplateDir()
			var names []string
			err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					if path != root && strings.HasPrefix(d.Name(), ".") {
						return filepath.SkipDir
					}
					return nil
				}
				if filepath.Ext(path) != cfg.Theme.Extension {
					return nil
				}
				rel, err := filepath.Rel(root, path)
				if err != nil {
					return err
				}
				names = append(names, filepath.ToSlash(rel))
				return nil
			})
			if err != nil {
				return fmt.Errorf("list templates in %q: %w", root, err)
			}

			slices.Sort(names)
			return printLines(cmd.OutOrStdout(), names)
		},
	}
}

// newListFunctionsCommand creates the "list functions" subcommand.
func newListFunctionsCommand(opts *Options) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "functions",
		Short: "List the host functions exposed to templates",
		Long: "List the host functions exposed to templates. With --all every host function is " +
			"listed and the exposed ones are marked with '*'.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			cfg, site, err := loadSiteFromOpts(opts)
			if err != nil {
				return err
			}

			adapter := theme.New(site.Request("/", false), siteHooks(cfg), themeOptions(cfg), logger)
			exposed := adapter.BuildFunctions(io.Discard)
			if all {
				lines := make([]string, 0, len(exposed))
				for _, name := range site.Functions() {
					mark := " "
					if _, ok := exposed[name]; ok {
						mark = "*"
					}
					lines = append(lines, mark+" "+name)
				}
				return printLines(cmd.OutOrStdout(), lines)
			}

			names := make([]string, 0, len(exposed))
			for name := range exposed {
				names = append(names, name)
			}
			slices.Sort(names)
			return printLines(cmd.OutOrStdout(), names)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "List every host function, marking the exposed ones")

	return cmd
}

func printLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
