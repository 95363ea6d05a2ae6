package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pongopress/pongopress/internal/config"
	"github.com/pongopress/pongopress/internal/host"
	"github.com/pongopress/pongopress/internal/theme"
)

func runDoctorChecks(logger *slog.Logger, cfg *config.Config, site *host.Site) error {
	var fatalErrs []error

	if err := checkDir(cfg.LibraryDir()); err != nil {
		err = fmt.Errorf("%w: %v", theme.ErrEngineMissing, err)
		logger.Error("engine library check failed", "path", cfg.LibraryDir(), "error", err)
		fatalErrs = append(fatalErrs, err)
	} else {
		logger.Info("engine library check ok", "path", cfg.LibraryDir())
	}

	if err := checkDir(cfg.TemplateDir()); err != nil {
		logger.Error("template directory check failed", "path", cfg.TemplateDir(), "error", err)
		fatalErrs = append(fatalErrs, err)
	} else {
		logger.Info("template directory check ok", "path", cfg.TemplateDir())
	}

	if len(fatalErrs) > 0 {
		return fmt.Errorf("doctor found %d fatal issue(s); see log for details", len(fatalErrs))
	}

	req := site.Request("/", false)
	if req.ResolveTemplate() == "" {
		logger.Warn("no template serves the front page; every request without a specific template will 404",
			"candidates", req.TemplateCandidates())
	}

	// Setup logs every rejected global function by itself.
	adapter := theme.New(req, siteHooks(cfg), themeOptions(cfg), logger)
	if err := adapter.Setup(io.Discard); err != nil {
		logger.Error("template environment setup failed", "error", err)
		return fmt.Errorf("doctor found 1 fatal issue(s); see log for details")
	}
	logger.Info("template environment check ok", "functions", adapter.Environment().Functions())

	return nil
}

func checkDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
