package config

import (
	"fmt"
)

// Load reads, validates, and defaults a YAML configuration file.
func Load(path string) (*Config, error) {
	cfg, err := Parse(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// Default returns the configuration used when no file is present: the
// full host metric set on the historical port, no OTLP push, no relay.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Export.Text.Port == 0 {
		cfg.Export.Text.Port = DefaultTextPort
	}
	if cfg.Export.Text.Path == "" {
		cfg.Export.Text.Path = DefaultTextPath
	}
	if cfg.Export.Text.QueryTimeout == 0 {
		cfg.Export.Text.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.Collect.ProcessLimit == 0 {
		cfg.Collect.ProcessLimit = DefaultProcessLimit
	}

	if cfg.Export.OTEL != nil {
		if cfg.Export.OTEL.Protocol == "" {
			cfg.Export.OTEL.Protocol = "http"
		}
		if cfg.Export.OTEL.Interval.Push == 0 {
			cfg.Export.OTEL.Interval.Push = DefaultOTELPushInterval
		}
	}

	if cfg.Relay != nil {
		if cfg.Relay.Port == 0 {
			cfg.Relay.Port = DefaultRelayPort
		}
		if cfg.Relay.ReporterPort == 0 {
			cfg.Relay.ReporterPort = DefaultTextPort
		}
		if cfg.Relay.Period == 0 {
			cfg.Relay.Period = DefaultRelayPeriod
		}
	}
}
