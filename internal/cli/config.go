package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/evcraddock/propdesk/internal/workflow"
)

const defaultServerURL = "http://localhost:8080"

// CLIConfig holds CLI configuration persisted to disk.
type CLIConfig struct {
	ServerURL    string        `yaml:"server_url,omitempty"`
	AccessToken  string        `yaml:"access_token,omitempty"`
	RefreshToken string        `yaml:"refresh_token,omitempty"`
	Email        string        `yaml:"email,omitempty"`
	Role         workflow.Role `yaml:"role,omitempty"`
}

// LoggedIn reports whether a session is stored.
func (c CLIConfig) LoggedIn() bool {
	return c.AccessToken != "" || c.RefreshToken != ""
}

// clearSession drops the tokens and the identity they belong to.
func (c *CLIConfig) clearSession() {
	c.AccessToken = ""
	c.RefreshToken = ""
	c.Email = ""
	c.Role = ""
}

// configPath returns the path to the CLI config file.
func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "pd", "config.yaml"), nil
}

// loadConfig reads the CLI config from disk.
// Returns a zero-value config if the file doesn't exist.
func loadConfig() (CLIConfig, error) {
	path, err := configPath()
	if err != nil {
		return CLIConfig{}, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return CLIConfig{}, nil
	}
	if err != nil {
		return CLIConfig{}, fmt.Errorf("reading config: %w", err)
	}

	var cfg CLIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// saveConfig writes the CLI config to disk.
func saveConfig(cfg CLIConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// updateConfig loads the config, applies fn and saves it again.
func updateConfig(fn func(*CLIConfig)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fn(&cfg)
	return saveConfig(cfg)
}

// getServerURL returns the server URL from env var, config, or default.
func getServerURL() string {
	if v := os.Getenv("PD_SERVER_URL"); v != "" {
		return v
	}
	cfg, err := loadConfig()
	if err == nil && cfg.ServerURL != "" {
		return cfg.ServerURL
	}
	return defaultServerURL
}
