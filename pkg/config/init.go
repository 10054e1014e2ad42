package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// InitConfig writes a fresh default configuration file to the default
// location, generating a random JWT signing secret. Returns the path
// written to. Fails if a config file already exists there unless force is
// set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a fresh default configuration file to path,
// generating a random JWT signing secret. Fails if a file already exists
// at path unless force is set.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	secret, err := generateJWTSecret()
	if err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}

	cfg := GetDefaultConfig()
	cfg.WS.JWT.Secret = secret

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := writeConfigTemplate(cfg, path); err != nil {
		return err
	}

	return nil
}

// generateJWTSecret returns a 64-character hex-encoded random secret,
// comfortably above the 32-character minimum the JWT service requires.
func generateJWTSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// writeConfigTemplate renders cfg as a commented YAML file so a freshly
// initialized install has something self-documenting to edit.
func writeConfigTemplate(cfg *Config, path string) error {
	header := "# relayfs Configuration File\n" +
		"#\n" +
		"# Generated by 'relayfsd init'. Edit this file directly, or override any\n" +
		"# value with an RELAYFS_<SECTION>_<KEY> environment variable.\n\n"

	if err := os.WriteFile(path, []byte(header), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	// SaveConfig overwrites the file with the marshaled config; re-prepend
	// the header afterward since yaml.Marshal has no comment hook.
	if err := SaveConfig(cfg, path); err != nil {
		return err
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read generated config: %w", err)
	}

	return os.WriteFile(path, append([]byte(header), body...), 0600)
}
