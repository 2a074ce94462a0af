package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultBaseURL = "http://localhost:5000/api"
	defaultTimeout = 15 * time.Second
)

type Config struct {
	APIBaseURL  string
	StateDir    string
	LogLevel    string
	HTTPTimeout time.Duration
}

// Load reads .env when present, then the environment. Missing values fall
// back to usable defaults so the CLI works against a local backend with no
// setup.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	cfg := &Config{
		APIBaseURL:  os.Getenv("ECOFINDS_API_BASE_URL"),
		StateDir:    os.Getenv("ECOFINDS_STATE_DIR"),
		LogLevel:    os.Getenv("ECOFINDS_LOG_LEVEL"),
		HTTPTimeout: defaultTimeout,
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		cfg.StateDir = filepath.Join(home, ".ecofinds")
	}
	if raw := os.Getenv("ECOFINDS_HTTP_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			log.Printf("Notice: invalid ECOFINDS_HTTP_TIMEOUT %q: %v. Using default", raw, err)
		} else {
			cfg.HTTPTimeout = d
		}
	}

	return cfg, nil
}
