package cli

import (
	"fmt"
	"log/slog"
	"maps"

	"github.com/spf13/cobra"

	"github.com/pongopress/pongopress/internal/config"
	"github.com/pongopress/pongopress/internal/env"
	"github.com/pongopress/pongopress/internal/host"
)

func parseInlineVarsAndFiles(cmd *cobra.Command) (env.Vars, []string, error) {
	fromEnv := varsEnv{}
	if err := parseEnv(&fromEnv); err != nil {
		return nil, nil, err
	}

	inline := cmd.Flag("vars").Value.String()
	if !cmd.Flags().Changed("vars") && envPresent("PONGOPRESS_VARS") {
		inline = fromEnv.Vars
	}
	inlineVars, err := env.ParseInlineVars(inline)
	if err != nil {
		return nil, nil, err
	}

	varFile := cmd.Flag("var-file").Value.String()
	if !cmd.Flags().Changed("var-file") && envPresent("PONGOPRESS_VAR_FILE") {
		varFile = fromEnv.VarFile
	}
	var varFiles []string
	if varFile != "" {
		varFiles = append(varFiles, varFile)
	}
	return inlineVars, varFiles, nil
}

// templateVarsFromCmd merges var-files and inline vars into the per-render
// variables. Inline vars win over files.
func templateVarsFromCmd(cmd *cobra.Command, logger *slog.Logger) (map[string]any, error) {
	inlineVars, varFiles, err := parseInlineVarsAndFiles(cmd)
	if err != nil {
		return nil, err
	}
	logger.Debug("template vars", "inline", inlineVars.Keys(), "files", varFiles)

	out := make(map[string]any)
	for _, path := range varFiles {
		fileVars, err := env.LoadVarFile(path)
		if err != nil {
			return nil, fmt.Errorf("load var-file %q: %w", path, err)
		}
		maps.Copy(out, fileVars)
	}
	maps.Copy(out, inlineVars.Map())
	return out, nil
}

func loadSiteFromOpts(opts *Options) (*config.Config, *host.Site, error) {
	cfg, err := config.Load(opts.ConfigPath, config.LoadOptions{})
	if err != nil {
		return nil, nil, err
	}
	return cfg, host.NewSite(cfg), nil
}

func addVarsFlags(cmd *cobra.Command) {
	cmd.Flags().String("vars", "", "Additional template variables in k=v,k2=v2 format")
	cmd.Flags().String("var-file", "", "Path to YAML/ENV file with additional template variables")
}
