// Package config manages the operator-local quorumctl configuration: the
// mapping from cluster references to kubeconfig contexts plus CLI settings.
// The file is local-only and never persisted to a cluster; the cluster-side
// topology record lives in pkg/remoteconfig.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	VersionV1 = "v1"
)

type Config struct {
	Version string `yaml:"version"`
	// ClusterRefs maps a stable logical cluster reference to the kubeconfig
	// context used to reach it.
	ClusterRefs map[string]string `yaml:"cluster-refs,omitempty"`
	Settings    Settings          `yaml:"settings,omitempty"`
}

type Settings struct {
	OutputFormat         string `yaml:"output-format,omitempty"`
	Kubeconfig           string `yaml:"kubeconfig,omitempty"`
	LeaseDurationSeconds int32  `yaml:"lease-duration-seconds,omitempty"`
	AcquireTimeout       string `yaml:"acquire-timeout,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Version: VersionV1,
		Settings: Settings{
			OutputFormat:         "table",
			LeaseDurationSeconds: 60,
			AcquireTimeout:       "2m",
		},
	}
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

// ContextFor resolves the kubeconfig context for a cluster reference. The
// second return is false when the reference has no local mapping.
func (c *Config) ContextFor(clusterRef string) (string, bool) {
	context, ok := c.ClusterRefs[clusterRef]
	return context, ok
}

func (c *Config) Validate() error {
	if c.Version == "" {
		return errors.New("config version missing")
	}
	for ref, context := range c.ClusterRefs {
		if strings.TrimSpace(ref) == "" {
			return errors.New("cluster reference cannot be empty")
		}
		if strings.TrimSpace(context) == "" {
			return fmt.Errorf("cluster reference %s requires a context", ref)
		}
	}
	if c.Settings.AcquireTimeout != "" {
		if _, err := time.ParseDuration(c.Settings.AcquireTimeout); err != nil {
			return fmt.Errorf("invalid acquire-timeout %q: %w", c.Settings.AcquireTimeout, err)
		}
	}
	if c.Settings.LeaseDurationSeconds < 0 {
		return fmt.Errorf("lease-duration-seconds cannot be negative")
	}
	return nil
}

// AcquireTimeoutOrDefault parses the configured acquire timeout, falling back
// to the given default on empty or invalid values.
func (c *Config) AcquireTimeoutOrDefault(def time.Duration) time.Duration {
	if c.Settings.AcquireTimeout == "" {
		return def
	}
	d, err := time.ParseDuration(c.Settings.AcquireTimeout)
	if err != nil {
		return def
	}
	return d
}
