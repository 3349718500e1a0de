package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is looked up in the data directory.
const ConfigFileName = "plurinotes.yaml"

// FileConfig is the on-disk configuration. Unset fields keep the defaults.
type FileConfig struct {
	Adapter           string `yaml:"adapter,omitempty"`
	Path              string `yaml:"path,omitempty"`
	Versioning        *bool  `yaml:"versioning,omitempty"`
	EmptyTrashOnClose bool   `yaml:"empty_trash_on_close,omitempty"`
	SystemDir         string `yaml:"system_dir,omitempty"`
}

// LoadConfig reads the config file in dir. A missing file yields a zero
// config.
func LoadConfig(dir string) (FileConfig, error) {
	var cfg FileConfig
	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid %s: %w", ConfigFileName, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to the config file in dir.
func SaveConfig(dir string, cfg FileConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0644)
}

// Options converts the file configuration into options. Options passed
// explicitly after these take precedence.
func (c FileConfig) Options() []Option {
	var opts []Option
	if c.Adapter != "" {
		opts = append(opts, WithAdapter(c.Adapter))
	}
	if c.Versioning != nil {
		opts = append(opts, WithVersioning(*c.Versioning))
	}
	if c.EmptyTrashOnClose {
		opts = append(opts, WithEmptyTrashOnClose(true))
	}
	if c.SystemDir != "" {
		opts = append(opts, WithSystemDir(c.SystemDir))
	}
	return opts
}
