// Package config loads service configuration for execkit binaries.
//
// LoadConfig resolves a config.yml and an optional .env file from the
// conventional locations (cmd/<service>/, config/, the working directory),
// then overlays environment variables onto the file values. Each scalar
// field of the target struct is bound to one variable derived from its
// mapstructure path, so engine.health.interval reads ENGINE_HEALTH_INTERVAL
// even when the file does not set it.
//
// # Usage
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Engine engine.Config `yaml:"engine" mapstructure:"engine"`
//	}
//
//	var cfg Config
//	if err := config.LoadConfig("execbench", &cfg); err != nil {
//	    return err
//	}
//	cfg.ApplyDefaults()
package config
