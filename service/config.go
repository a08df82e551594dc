package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config defines a literate project: where documents live, where tangled
// targets go, and where pass state is recorded.
type Config struct {
	State      StateConfig `yaml:"state"`
	Documents  []string    `yaml:"documents"`
	TargetRoot string      `yaml:"targetRoot"`
	Include    []string    `yaml:"include"`
	Exclude    []string    `yaml:"exclude"`
	MaxSize    int         `yaml:"maxSizeBytes"`
	DebounceMS int         `yaml:"debounceMs"`
}

// StateConfig defines state database settings.
type StateConfig struct {
	DSN string `yaml:"dsn"`
}

// LoadConfig reads and normalizes a project config.
func LoadConfig(path string) (*Config, error) {
	path, err := expandUserPath(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	if cfg.State.DSN != "" {
		expanded, err := expandUserPath(cfg.State.DSN)
		if err != nil {
			return nil, err
		}
		cfg.State.DSN = absolute(base, expanded)
	} else {
		cfg.State.DSN = filepath.Join(base, ".entangle.db")
	}
	if cfg.TargetRoot != "" {
		expanded, err := expandUserPath(cfg.TargetRoot)
		if err != nil {
			return nil, err
		}
		cfg.TargetRoot = absolute(base, expanded)
	} else {
		cfg.TargetRoot = base
	}
	if len(cfg.Documents) == 0 {
		cfg.Documents = []string{base}
	}
	for i, doc := range cfg.Documents {
		expanded, err := expandUserPath(doc)
		if err != nil {
			return nil, err
		}
		cfg.Documents[i] = absolute(base, expanded)
	}
	return &cfg, nil
}

func absolute(base, path string) string {
	if path == "" || filepath.IsAbs(path) || strings.Contains(path, "://") {
		return path
	}
	return filepath.Join(base, path)
}

func expandUserPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if trimmed == "~" {
		return home, nil
	}
	if !strings.HasPrefix(trimmed, "~/") {
		return "", fmt.Errorf("config: unsupported ~user path: %s", path)
	}
	return filepath.Join(home, trimmed[2:]), nil
}
