// Package app wires configuration into the running components.
package app

import (
	"fmt"
	"net/http"

	"github.com/hostbox/hostbox/internal/collect"
	"github.com/hostbox/hostbox/internal/config"
	"github.com/hostbox/hostbox/internal/exporter"
	"github.com/hostbox/hostbox/internal/gpu"
	"github.com/hostbox/hostbox/internal/metric"
	"github.com/hostbox/hostbox/internal/relay"
	"github.com/hostbox/hostbox/internal/report"
	"github.com/hostbox/hostbox/internal/server"
	"github.com/hostbox/hostbox/internal/sim"
)

// App holds initialized application components.
type App struct {
	Config       *config.Config
	Metrics      *metric.Registry
	Sim          *sim.Sim
	TextServer   *server.Server
	OTELExporter *exporter.OTELExporter
	Relay        *relay.Relay
	RelayServer  *server.Server

	// gpuSession is shared by the gpu metric and the snapshot
	// reporter. Open pins it directly: when the gpu metric is disabled
	// by config the registry never sees the session, and an unpinned
	// session would be torn down by the first snapshot's exit.
	gpuSession *metric.Session
	gpuPinned  bool
}

// New initializes the application from loaded configuration. The
// registry is fully populated here, before any server starts; duplicate
// or miswired metrics abort startup.
func New(cfg *config.Config) (*App, error) {
	registry := metric.NewRegistry(cfg.Export.Text.QueryTimeout, nil)

	// Session-scoped members of the metric set. Their backends stay
	// lazy: nothing is touched until the first scrape enters the scope.
	thermalDesc := collect.NewThermalDescriptor()
	gpuDesc, gpuSession, gpuBackend := gpu.NewDescriptor()

	collectCfg := collect.Config{
		Disabled:      cfg.Collect.Disabled,
		ExcludeMounts: cfg.Collect.ExcludeMounts,
		ExcludeNICs:   cfg.Collect.ExcludeNICs,
	}
	if err := collect.Register(registry, collectCfg, thermalDesc, gpuDesc); err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Metrics: registry, gpuSession: gpuSession}

	if cfg.Collect.Simulate {
		app.Sim = sim.New(sim.DefaultInterval)
		for _, d := range app.Sim.Descriptors() {
			if err := registry.Register(d); err != nil {
				return nil, err
			}
		}
	}

	// Exposition server: metrics at the configured path, the job
	// snapshot alongside it.
	reporter := report.New(gpuBackend, gpuSession, cfg.Collect.ProcessLimit, nil)
	text := exporter.NewText(registry, cfg.Export.Text.Path, cfg.Export.Text.InternalMetrics)
	handler := text.Handler(map[string]http.Handler{
		"/snapshot": reporter.Handler(),
	})
	app.TextServer = server.New("exposition", cfg.Export.Text.Port, handler)

	if otelCfg := cfg.Export.OTEL; otelCfg != nil && otelCfg.Enabled {
		otelExporter, err := exporter.NewOTELExporter(otelCfg, registry)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTEL exporter: %w", err)
		}
		app.OTELExporter = otelExporter
	}

	if relayCfg := cfg.Relay; relayCfg != nil && relayCfg.Enabled {
		rel, err := relay.New(relayCfg.Upstreams, relayCfg.ReporterPort, relayCfg.Period, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create relay: %w", err)
		}
		app.Relay = rel
		app.RelayServer = server.New("relay", relayCfg.Port, rel.Handler())
	}

	return app, nil
}

// Open takes the long-lived session references: every session owned by
// a registered descriptor, plus the reporter's gpu session. Call once
// at startup, pair with Close at shutdown.
func (a *App) Open() {
	a.Metrics.Open()
	if a.gpuSession != nil {
		if err := a.gpuSession.Enter(); err == nil {
			a.gpuPinned = true
		}
	}
}

// Close releases the references taken by Open, triggering backend
// teardown once no snapshot in flight still holds a scope.
func (a *App) Close() {
	if a.gpuPinned {
		a.gpuSession.Exit()
		a.gpuPinned = false
	}
	a.Metrics.Close()
}
