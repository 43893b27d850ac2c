package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL  string        `env:"API_BASE_URL" envDefault:"https://bizlink-production.up.railway.app"`
	Token       string        `env:"TOKEN"`
	TokenFile   string        `env:"TOKEN_FILE"`
	Environment string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`
	PageSize    int           `env:"PAGE_SIZE" envDefault:"10"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads BIZLINK_* environment variables, optionally seeded from an env
// file (BIZLINK_ENV_FILE, falling back to ./.env). Real environment variables
// win over file values because godotenv never overwrites an existing key.
func Load() (*Config, error) {
	if path, ok := os.LookupEnv("BIZLINK_ENV_FILE"); ok && path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "BIZLINK_"}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Token == "" && cfg.TokenFile != "" {
		if data, err := os.ReadFile(cfg.TokenFile); err == nil {
			cfg.Token = strings.TrimSpace(string(data))
		}
	}

	return cfg, nil
}
