package cli

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pongopress/pongopress/internal/logging"
	"github.com/pongopress/pongopress/internal/server"
	"github.com/pongopress/pongopress/internal/theme"
)

// newDoctorCommand creates the "doctor" subcommand that checks the site the way the admin screen does.
func newDoctorCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the theme and template engine library are in place",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			cfg, site, err := loadSiteFromOpts(opts)
			if err != nil {
				return err
			}

			reg := siteHooks(cfg)
			admin := theme.New(site.Request(server.AdminPrefix, true), reg, themeOptions(cfg), logger)
			admin.Bootstrap()

			var notices bytes.Buffer
			sink := io.MultiWriter(&notices, logging.NewWriter(logger, "admin notice").WithLevel(logging.LevelError))
			if err := reg.AdminNotices.Do(sink); err != nil {
				return fmt.Errorf("run admin notices: %w", err)
			}
			if notices.Len() > 0 {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), notices.String()); err != nil {
					return err
				}
			}

			if err := runDoctorChecks(logger, cfg, site); err != nil {
				return err
			}

			logger.Info("doctor checks completed successfully", "theme", cfg.Theme.Name)
			return nil
		},
	}

	return cmd
}
