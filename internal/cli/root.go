// Package cli defines the command-line interface for pongopress.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pongopress/pongopress/internal/config"
	"github.com/pongopress/pongopress/internal/logging"
)

// Options stores global CLI options shared between commands.
type Options struct {
	ConfigPath string
	LogLevel   logging.Level
}

// Execute builds the root command, runs it with the provided args and logger, and returns any error.
func Execute(args []string, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewLogger(os.Stderr, logging.LevelInfo)
	}

	rootOpts := &Options{
		ConfigPath: config.DefaultPath,
		LogLevel:   logging.LevelInfo,
	}

	rootCmd := newRootCommand(rootOpts, logger)
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

// newRootCommand constructs the root cobra.Command with global flags and subcommands.
func newRootCommand(opts *Options, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pongopress",
		Short:         "pongopress renders a content site through pongo2 templates",
		Long:          "pongopress serves and renders a small content site whose theme pages are pongo2 templates, with site globals and host helper functions injected into every template.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			base := baseEnv{}
			if err := parseEnv(&base); err != nil {
				return err
			}
			if !cmd.Flags().Changed("config") && envPresent("PONGOPRESS_CONFIG") {
				opts.ConfigPath = base.ConfigPath
			}
			levelName := cmd.Flag("log-level").Value.String()
			if !cmd.Flags().Changed("log-level") && envPresent("PONGOPRESS_LOG_LEVEL") {
				levelName = base.LogLevel
			}

			level := logging.ParseLevel(levelName)
			opts.LogLevel = level
			logger = logging.NewLogger(cmd.ErrOrStderr(), level)
			cmd.SetContext(context.WithValue(cmd.Context(), loggerKey{}, logger))
			logger.Debug("logger initialized", "level", level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath, "Path to site.yaml configuration file")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newRenderCommand(opts),
		newServeCommand(opts),
		newDoctorCommand(opts),
		newGroupCommand("list", "List theme templates and host functions",
			newListTemplatesCommand(opts),
			newListFunctionsCommand(opts),
		),
	)

	return cmd
}

// loggerKey is a private context key used to store a logger in command contexts.
type loggerKey struct{}

// LoggerFromContext extracts a logger from the context or falls back to a default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return logging.NewLogger(os.Stderr, logging.LevelInfo)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return logging.NewLogger(os.Stderr, logging.LevelInfo)
}
