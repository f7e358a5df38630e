package config

import (
	"time"

	"go.yaml.in/yaml/v4"
)

const (
	// Exposition defaults, matching the historical deployment.
	DefaultTextPort = 9110
	DefaultTextPath = "/"

	DefaultQueryTimeout = 5 * time.Second

	// Relay defaults.
	DefaultRelayPort    = 8271
	DefaultRelayPeriod  = 60 * time.Second
	DefaultProcessLimit = 10

	DefaultOTELPushInterval = 10 * time.Second
)

// Config holds the complete application configuration.
type Config struct {
	Export  ExportConfig  `yaml:"export"`
	Collect CollectConfig `yaml:"collect"`
	Relay   *RelayConfig  `yaml:"relay,omitempty"`
}

// ExportConfig defines how metrics leave the process.
type ExportConfig struct {
	Text TextExportConfig  `yaml:"text"`
	OTEL *OTELExportConfig `yaml:"otel,omitempty"`
}

// TextExportConfig defines the pull-based exposition endpoint.
type TextExportConfig struct {
	Port            int           `yaml:"port"`
	Path            string        `yaml:"path"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	InternalMetrics bool          `yaml:"internal_metrics"`
}

// OTELExportConfig defines OTLP push settings.
type OTELExportConfig struct {
	Enabled  bool              `yaml:"enabled"`
	Endpoint string            `yaml:"endpoint"`
	Protocol string            `yaml:"protocol"` // http | grpc
	Interval IntervalConfig    `yaml:"interval"`
	Resource map[string]string `yaml:"resource,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
}

// IntervalConfig defines read and push intervals for OTEL.
type IntervalConfig struct {
	Read time.Duration
	Push time.Duration
}

// UnmarshalYAML handles both simple (10s) and detailed (read/push) forms.
func (i *IntervalConfig) UnmarshalYAML(value *yaml.Node) error {
	// Try simple duration form first
	var simple time.Duration
	if err := value.Decode(&simple); err == nil {
		i.Read = simple
		i.Push = simple
		return nil
	}

	// Fall back to detailed form
	type intervalConfig struct {
		Read time.Duration `yaml:"read"`
		Push time.Duration `yaml:"push"`
	}
	var detailed intervalConfig
	if err := value.Decode(&detailed); err != nil {
		return err
	}
	i.Read = detailed.Read
	i.Push = detailed.Push
	return nil
}

// CollectConfig narrows the host metric set.
type CollectConfig struct {
	Disabled      []string `yaml:"disabled,omitempty"`
	ExcludeMounts []string `yaml:"exclude_mounts,omitempty"`
	ExcludeNICs   []string `yaml:"exclude_nics,omitempty"`
	ProcessLimit  int      `yaml:"process_limit"`

	// Simulate replaces hardware-backed sources with synthetic ones so
	// the exporter can run on development machines.
	Simulate bool `yaml:"simulate"`
}

// RelayConfig defines the dashboard relay server.
type RelayConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Port         int           `yaml:"port"`
	Upstreams    []string      `yaml:"upstreams"`
	ReporterPort int           `yaml:"reporter_port"`
	Period       time.Duration `yaml:"period"`
}
