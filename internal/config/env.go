package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set win; a missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// applyEnv overrides cfg fields that carry an env tag with variables that
// are set. vars replaces the process environment when non-nil.
func applyEnv(cfg *Config, vars map[string]string) error {
	opts := env.Options{}
	if vars != nil {
		opts.Environment = vars
	}
	return env.ParseWithOptions(cfg, opts)
}
