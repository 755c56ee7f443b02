// Package config loads the server/CLI configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

type Config struct {
	// DataDir is the root directory for the ledger and local object store.
	DataDir string `yaml:"dataDir"`
	// Listen is the API server bind address.
	Listen string `yaml:"listen"`
	// MinimumFreeGB is the ledger's free-space floor. Zero disables it.
	MinimumFreeGB int `yaml:"minimumFreeGB"`
	// PinServiceURL switches the object store to a remote pinning service
	// when non-empty; otherwise the local store is used.
	PinServiceURL string `yaml:"pinServiceURL"`
	// KeystoreDir backs the keyring's file fallback.
	KeystoreDir string `yaml:"keystoreDir"`
}

func defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:     filepath.Join(home, ".cidvault", "data"),
		Listen:      "localhost:4242",
		KeystoreDir: filepath.Join(home, ".cidvault", "keys"),
	}
}

// Load reads the YAML config at path. A missing file yields the defaults;
// a present but malformed file is an error.
func Load(path string) (Config, error) {
	config := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parse config %s: %w", path, err)
	}
	if config.DataDir == "" {
		config.DataDir = defaults().DataDir
	}
	if config.Listen == "" {
		config.Listen = defaults().Listen
	}
	if config.KeystoreDir == "" {
		config.KeystoreDir = defaults().KeystoreDir
	}
	return config, nil
}
