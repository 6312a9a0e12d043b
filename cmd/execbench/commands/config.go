package commands

import (
	"fmt"
	"time"

	"github.com/kbukum/execkit/config"
	"github.com/kbukum/execkit/engine"
	"github.com/kbukum/execkit/logger"
	"github.com/kbukum/execkit/server"
)

const serviceName = "execbench"

// Config is the execbench configuration file layout.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Engine    engine.Config   `yaml:"engine" mapstructure:"engine"`
	Server    server.Config   `yaml:"server" mapstructure:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// TelemetryConfig enables OTLP trace and metric export.
type TelemetryConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64       `yaml:"sample_rate" mapstructure:"sample_rate"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()
	if c.Engine.Name == "" {
		c.Engine.Name = c.Name
	}
	c.Engine.ApplyDefaults()
	c.Server.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// loadConfig reads the config file (explicit path or the standard search
// locations), applies defaults and validates.
func loadConfig(path string) (*Config, error) {
	var opts []config.LoaderOption
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}

	var cfg Config
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// newLogger builds the process logger and installs it globally.
func newLogger(cfg *Config) *logger.Logger {
	log := logger.New(&cfg.Logging, cfg.Name)
	logger.SetGlobalLogger(log)
	logger.RegisterComponents(cfg.Logging.Components, "engine", "circuit-breaker")
	return log
}
