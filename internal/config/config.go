// Package config loads the optional TOML configuration file. Command-line
// flags and environment variables override anything set here.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Addr   string `toml:"addr"`
	DBPath string `toml:"db_path"`

	JWTSecret string `toml:"jwt_secret"`

	WebhookURL    string `toml:"webhook_url"`
	WebhookSecret string `toml:"webhook_secret"`

	// Bootstrap credentials let a fresh deployment call the API before any
	// keys exist. The raw key is hashed before it is stored.
	BootstrapAPIKey string `toml:"bootstrap_api_key"`
	BootstrapUserID string `toml:"bootstrap_user_id"`
	BootstrapRole   string `toml:"bootstrap_role"`
}

func Default() Config {
	return Config{
		Addr:            ":8080",
		DBPath:          "garageapi.db",
		BootstrapUserID: "bootstrap",
		BootstrapRole:   "admin",
	}
}

// Load reads the file at path over the defaults. An empty path returns the
// defaults; a missing file is an error so typos do not silently run with
// default settings.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("config file: %w", err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}
