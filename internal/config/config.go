// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads the sshm configuration, layering defaults, the
// config file, SSHM_* environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the fully resolved configuration.
type Config struct {
	SSHDir       string        `mapstructure:"ssh_dir" yaml:"ssh_dir"`
	BackupDir    string        `mapstructure:"backup_dir" yaml:"backup_dir"`
	KeyType      string        `mapstructure:"key_type" yaml:"key_type"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	Language     string        `mapstructure:"language" yaml:"language"`
	Debug        bool          `mapstructure:"debug" yaml:"debug"`
}

// Defaults returns the built-in settings: keys live in ~/.ssh, backups in a
// key_backups directory next to them.
func Defaults() map[string]any {
	home, _ := os.UserHomeDir()
	return map[string]any{
		"ssh_dir":       filepath.Join(home, ".ssh"),
		"backup_dir":    "key_backups",
		"key_type":      "ed25519",
		"probe_timeout": 10 * time.Second,
		"language":      "en",
		"debug":         false,
	}
}

// getConfigPath returns the full path for the configuration file.
func getConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "sshm")
		default:
			configDir = "/etc/sshm"
		}
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "sshm")
	}

	return filepath.Join(configDir, "sshm.yaml"), nil
}

// Load resolves the configuration for a command invocation. Precedence,
// highest first: flags, environment, explicit --config file, user config,
// system config, defaults.
func Load(cmd *cobra.Command, explicitFile string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName("sshm")
	v.SetConfigType("yaml")

	if explicitFile != "" {
		v.SetConfigFile(explicitFile)
	}
	if userConfigPath, err := getConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := getConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; a malformed one is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("sshm")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}

// EnsureDefaultFile writes a default config file to the user config
// directory when none exists, so the settings are discoverable.
func EnsureDefaultFile() error {
	path, err := getConfigPath(false)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	d := Defaults()
	c := Config{
		SSHDir:       d["ssh_dir"].(string),
		BackupDir:    d["backup_dir"].(string),
		KeyType:      d["key_type"].(string),
		ProbeTimeout: d["probe_timeout"].(time.Duration),
		Language:     d["language"].(string),
	}
	return Write(&c, false)
}

// Write persists the configuration to the user (or system) config file.
func Write(c *Config, system bool) error {
	path, err := getConfigPath(system)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	return os.WriteFile(path, data, 0600)
}
