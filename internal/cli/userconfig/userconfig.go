package userconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	configDirName  = "investly"
	configFileName = "config.json"

	// DirEnv overrides the config directory, mainly for tests and CI
	DirEnv = "INVESTLY_CONFIG_DIR"
	// ServerEnv overrides the configured API server
	ServerEnv = "INVESTLY_SERVER"
)

// UserConfig represents the user's local configuration stored in ~/.config/investly/config.json
type UserConfig struct {
	ServerURL string `json:"server_url"`
}

// Dir returns the directory holding the config file and the token fallback file
func Dir() (string, error) {
	if dir := os.Getenv(DirEnv); dir != "" {
		return dir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", configDirName), nil
}

// GetConfigPath returns the path to the user config file
func GetConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the user configuration file
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	// If config doesn't exist, return empty config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &UserConfig{}, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the user configuration to a file
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	// Create config directory if it doesn't exist
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}

	return nil
}

// SetServerURL updates the API server and saves the config
func SetServerURL(serverURL string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	cfg.ServerURL = strings.TrimRight(serverURL, "/")
	return Save(cfg)
}

// GetServerURL returns the API server, preferring INVESTLY_SERVER over the file
func GetServerURL() (string, error) {
	if env := os.Getenv(ServerEnv); env != "" {
		return strings.TrimRight(env, "/"), nil
	}

	cfg, err := Load()
	if err != nil {
		return "", err
	}
	if cfg.ServerURL == "" {
		return "", fmt.Errorf("no server configured. Run 'investly init --server URL' first")
	}
	return cfg.ServerURL, nil
}
