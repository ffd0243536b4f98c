// Package config loads and saves the deckhand configuration.
//
// Config is read from .deckhand/config.yaml in the working directory when
// present, otherwise from ~/.config/deckhand/config.yaml. All values have
// working defaults so a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the full deckhand configuration.
type Config struct {
	Project ProjectConfig `mapstructure:"project"`
	Editor  EditorConfig  `mapstructure:"editor"`
	Session SessionConfig `mapstructure:"session"`
}

// ProjectConfig identifies the remote store.
type ProjectConfig struct {
	ID          string `mapstructure:"id"`
	Credentials string `mapstructure:"credentials"` // path, empty = ADC
	Collection  string `mapstructure:"collection"`
}

// EditorConfig tunes the save coordinator and local draft cache.
type EditorConfig struct {
	SaveTimeout time.Duration `mapstructure:"save_timeout"`
	DraftCache  string        `mapstructure:"draft_cache"`
}

// SessionConfig tunes identity handling.
type SessionConfig struct {
	TokenPath     string        `mapstructure:"token_path"`
	AttachRetries int           `mapstructure:"attach_retries"`
	AttachBackoff time.Duration `mapstructure:"attach_backoff"`
}

const localConfigPath = ".deckhand/config.yaml"

// Path returns the config file path in effect: project-local if it exists,
// otherwise the user-level location.
func Path() string {
	if _, err := os.Stat(localConfigPath); err == nil {
		return localConfigPath
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "deckhand", "config.yaml")
}

// Load reads the config at path, applying defaults for anything unset.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	stateDir := filepath.Join(home, ".local", "state", "deckhand")

	v.SetDefault("project.collection", "cards")
	v.SetDefault("editor.save_timeout", 10*time.Second)
	v.SetDefault("editor.draft_cache", filepath.Join(stateDir, "drafts.db"))
	v.SetDefault("session.token_path", filepath.Join(stateDir, "id_token"))
	v.SetDefault("session.attach_retries", 5)
	v.SetDefault("session.attach_backoff", 100*time.Millisecond)
}

// Set updates one key in the config file at path, preserving every other
// key. A missing file is created.
func Set(path, key string, value any) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	v.Set(key, value)

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// WriteDefaultConfig creates a config file at path with the default
// settings spelled out, for `deckhand init`.
func WriteDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	content := `project:
  id: ""
  credentials: ""
  collection: cards
editor:
  save_timeout: 10s
session:
  attach_retries: 5
  attach_backoff: 100ms
`
	return os.WriteFile(path, []byte(content), 0o640)
}
