package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable name in Config tags.
const EnvPrefix = "SPENDSMART_"

// envFile is loaded before the environment is parsed; variables already set
// in the process environment win over the file.
var envFile = ".env"

// parseEnv overlays cfg with SPENDSMART_* variables. Unset variables leave
// the current values untouched.
func parseEnv(cfg *Config) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
