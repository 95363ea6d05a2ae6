package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pongopress/pongopress/internal/server"
	"github.com/pongopress/pongopress/internal/watcher"
)

const watchDebounce = 150 * time.Millisecond

// newServeCommand creates the "serve" subcommand that runs the HTTP front controller.
func newServeCommand(opts *Options) *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the site over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			cfg, site, err := loadSiteFromOpts(opts)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("watch") {
				watch = cfg.Server.Watch
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(site, siteHooks(cfg), themeOptions(cfg), logger)

			if watch {
				var roots []string
				for _, dir := range []string{cfg.StylesheetDir(), cfg.LibraryDir()} {
					if info, err := os.Stat(dir); err == nil && info.IsDir() {
						roots = append(roots, dir)
					}
				}
				w, err := watcher.New(roots, watchDebounce, logger)
				if err != nil {
					return err
				}
				srv.EnableLiveReload()
				go func() {
					if err := srv.WatchAndReload(ctx, w); err != nil {
						logger.Error("theme watcher stopped", "error", err)
					}
				}()
				logger.Info("watching theme for changes", "dirs", roots)
			}

			return srv.Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to server.addr from site.yaml)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload browsers when theme or engine library files change")

	return cmd
}
