package config

import (
	"fmt"
)

// Validate performs syntactic validation before defaults are applied.
func Validate(cfg *Config) error {
	if cfg.Export.Text.Port < 0 || cfg.Export.Text.Port > 65535 {
		return fmt.Errorf("text export port %d out of range", cfg.Export.Text.Port)
	}
	if cfg.Export.Text.QueryTimeout < 0 {
		return fmt.Errorf("query timeout cannot be negative")
	}

	if otel := cfg.Export.OTEL; otel != nil && otel.Enabled {
		if otel.Endpoint == "" {
			return fmt.Errorf("otel export enabled without an endpoint")
		}
		switch otel.Protocol {
		case "", "http", "grpc":
		default:
			return fmt.Errorf("otel protocol %q unsupported (must be http or grpc)", otel.Protocol)
		}
	}

	if relay := cfg.Relay; relay != nil && relay.Enabled {
		if len(relay.Upstreams) == 0 {
			return fmt.Errorf("relay enabled without upstreams")
		}
		for i, host := range relay.Upstreams {
			if host == "" {
				return fmt.Errorf("relay upstream at index %d is empty", i)
			}
		}
		if relay.Period < 0 {
			return fmt.Errorf("relay period cannot be negative")
		}
	}

	return nil
}
