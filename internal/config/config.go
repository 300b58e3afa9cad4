// Package config loads the partitioner configuration from YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Precision names accepted in configuration.
const (
	PrecisionFP32         = "fp32"
	PrecisionStaticQuant  = "static_quant"
	PrecisionDynamicQuant = "dynamic_quant"
)

// Operator names accepted in configuration.
const (
	OperatorLinear      = "linear"
	OperatorConvolution = "convolution"
	OperatorAddmm       = "addmm"
	OperatorMM          = "mm"
)

// Config holds all configuration for the partitioner.
type Config struct {
	// EnabledPrecisions lists the precisions the backend instance enables.
	EnabledPrecisions []string `yaml:"enabled_precisions" env:"GGP_ENABLED_PRECISIONS"`

	// Operators lists the GEMM-like operator families to resolve.
	Operators []string `yaml:"operators" env:"GGP_OPERATORS"`

	// ForceNonStaticWeights keeps fp32 linear-family weights out of
	// partitions so the backend treats them as runtime inputs.
	ForceNonStaticWeights bool `yaml:"force_non_static_weights_for_f32_linear" env:"GGP_FORCE_NON_STATIC_WEIGHTS"`

	// Logging
	Verbose bool `yaml:"verbose" env:"GGP_VERBOSE"`
}

// DefaultConfig returns a Config with sensible defaults: every operator and
// every precision enabled.
func DefaultConfig() *Config {
	return &Config{
		EnabledPrecisions: []string{PrecisionFP32, PrecisionStaticQuant, PrecisionDynamicQuant},
		Operators:         []string{OperatorLinear, OperatorConvolution, OperatorAddmm, OperatorMM},
	}
}

// globalConfigFilePath returns the global config file path (~/.ggp/config.yaml)
func globalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ggp/config.yaml"
	}
	return filepath.Join(home, ".ggp", "config.yaml")
}

// projectConfigFilePath returns the project-level config file path (./.ggp/config.yaml)
func projectConfigFilePath() string {
	return ".ggp/config.yaml"
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.ggp/config.yaml)
// 3. Global config (~/.ggp/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	globalConfigPath := globalConfigFilePath()
	if data, err := os.ReadFile(globalConfigPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", globalConfigPath, err)
		}
	}

	projectConfigPath := projectConfigFilePath()
	if data, err := os.ReadFile(projectConfigPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", projectConfigPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// SaveProject writes the configuration to the project-level path.
func (c *Config) SaveProject() error {
	return c.Save(projectConfigFilePath())
}

// applyEnvOverrides applies environment variable overrides to the config.
// List-valued variables are comma separated.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GGP_ENABLED_PRECISIONS"); v != "" {
		cfg.EnabledPrecisions = splitList(v)
	}
	if v := os.Getenv("GGP_OPERATORS"); v != "" {
		cfg.Operators = splitList(v)
	}
	if v := os.Getenv("GGP_FORCE_NON_STATIC_WEIGHTS"); v != "" {
		cfg.ForceNonStaticWeights = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("GGP_VERBOSE"); v != "" {
		cfg.Verbose = v == "1" || strings.EqualFold(v, "true")
	}
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks the configuration for unknown names.
func (c *Config) Validate() error {
	if len(c.EnabledPrecisions) == 0 {
		return fmt.Errorf("enabled_precisions must not be empty")
	}
	for _, p := range c.EnabledPrecisions {
		switch p {
		case PrecisionFP32, PrecisionStaticQuant, PrecisionDynamicQuant:
		default:
			return fmt.Errorf("unknown precision %q", p)
		}
	}
	for _, op := range c.Operators {
		switch op {
		case OperatorLinear, OperatorConvolution, OperatorAddmm, OperatorMM:
		default:
			return fmt.Errorf("unknown operator %q", op)
		}
	}
	return nil
}
