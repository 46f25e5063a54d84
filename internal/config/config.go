package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

const (
	defaultPort      = 8080
	defaultMcpPort   = 8081
	defaultMcpHost   = "localhost"
	defaultModelDir  = "./models"
	defaultLogLevel  = "info"
	defaultOrder     = 1
	defaultDelta     = 0.01
	defaultSmoothing = "additive"
	defaultWorkers   = 2
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Mcp      McpConfig      `yaml:"mcp"`
	Training TrainingConfig `yaml:"training"`
}

type AppConfig struct {
	Port     int    `yaml:"port"`
	ModelDir string `yaml:"model_dir"`
	LogLevel string `yaml:"log_level"`
}

type McpConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (m McpConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

// TrainingConfig holds the estimation parameters
type TrainingConfig struct {
	Order     int     `yaml:"order"`
	Delta     float64 `yaml:"delta"`
	Cutoff    int64   `yaml:"cutoff"`
	Smoothing string  `yaml:"smoothing"`
	Workers   int     `yaml:"workers"`
}

// InvalidConfigError reports a configuration value that cannot be used
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Training.Delta = defaultDelta
	return cfg
}

// LoadConfig reads a YAML file, fills in defaults and validates the result
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// explicitFields records which defaulted fields the file actually set, so
// an explicit zero is validated instead of replaced
type explicitFields struct {
	Training struct {
		Order *int `yaml:"order"`
	} `yaml:"training"`
}

// Parse decodes YAML configuration data
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	var explicit explicitFields
	if err := yaml.Unmarshal(data, &explicit); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if explicit.Training.Order != nil {
		cfg.Training.Order = *explicit.Training.Order
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Port == 0 {
		c.App.Port = defaultPort
	}
	if c.App.ModelDir == "" {
		c.App.ModelDir = defaultModelDir
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultLogLevel
	}
	if c.Mcp.Host == "" {
		c.Mcp.Host = defaultMcpHost
	}
	if c.Mcp.Port == 0 {
		c.Mcp.Port = defaultMcpPort
	}
	if c.Training.Order == 0 {
		c.Training.Order = defaultOrder
	}
	if c.Training.Smoothing == "" {
		c.Training.Smoothing = defaultSmoothing
	}
	if c.Training.Workers == 0 {
		c.Training.Workers = defaultWorkers
	}
}

// Validate checks the training parameters. A non-positive delta is replaced
// by the default rather than rejected.
func (c *Config) Validate() error {
	if c.Training.Order < 1 {
		return &InvalidConfigError{Field: "training.order", Reason: fmt.Sprintf("must be at least 1, got %d", c.Training.Order)}
	}
	if c.Training.Cutoff < 0 {
		return &InvalidConfigError{Field: "training.cutoff", Reason: fmt.Sprintf("must not be negative, got %d", c.Training.Cutoff)}
	}
	switch c.Training.Smoothing {
	case "additive", "witten-bell":
	default:
		return &InvalidConfigError{Field: "training.smoothing", Reason: fmt.Sprintf("unknown smoothing %q", c.Training.Smoothing)}
	}
	if c.Training.Workers < 0 {
		return &InvalidConfigError{Field: "training.workers", Reason: fmt.Sprintf("must not be negative, got %d", c.Training.Workers)}
	}
	if c.Training.Delta <= 0 {
		c.Training.Delta = defaultDelta
	}
	return nil
}
