package cli

import (
	"os"
	"strings"

	envparse "github.com/caarlos0/env/v11"
)

// baseEnv defines root CLI defaults sourced from PONGOPRESS_* env vars.
type baseEnv struct {
	// ConfigPath is the site.yaml path from PONGOPRESS_CONFIG.
	ConfigPath string `env:"PONGOPRESS_CONFIG"`
	// LogLevel is the logging level from PONGOPRESS_LOG_LEVEL.
	LogLevel string `env:"PONGOPRESS_LOG_LEVEL"`
}

// varsEnv describes inline vars and var files passed via env.
type varsEnv struct {
	// Vars is a k=v,k2=v2 list from PONGOPRESS_VARS.
	Vars string `env:"PONGOPRESS_VARS"`
	// VarFile is a YAML/ENV path from PONGOPRESS_VAR_FILE.
	VarFile string `env:"PONGOPRESS_VAR_FILE"`
}

// parseEnv fills target from PONGOPRESS_* env vars via caarlos0/env.
func parseEnv(target any) error {
	return envparse.Parse(target)
}

// envPresent reports whether a non-empty env var exists.
func envPresent(key string) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	return strings.TrimSpace(val) != ""
}
