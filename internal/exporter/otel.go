package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hostbox/hostbox/internal/config"
	"github.com/hostbox/hostbox/internal/metric"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// OTELExporter pushes the registry's metrics to an OTLP collector. It
// observes the same flattened samples the text endpoint renders, with
// label pairs carried as attributes.
type OTELExporter struct {
	config        *config.OTELExportConfig
	registry      *metric.Registry
	meterProvider *sdkmetric.MeterProvider
	instruments   map[string]instrument
}

// instrument holds the observable registered for one descriptor.
type instrument struct {
	counter otelmetric.Float64ObservableCounter
	gauge   otelmetric.Float64ObservableGauge
}

// NewOTELExporter creates the push pipeline.
func NewOTELExporter(cfg *config.OTELExportConfig, registry *metric.Registry) (*OTELExporter, error) {
	res, err := newResource(cfg.Resource)
	if err != nil {
		return nil, err
	}

	reader, err := newReader(cfg)
	if err != nil {
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	meter := meterProvider.Meter("hostbox")

	e := &OTELExporter{
		config:        cfg,
		registry:      registry,
		meterProvider: meterProvider,
		instruments:   make(map[string]instrument),
	}

	var observables []otelmetric.Observable
	for _, d := range registry.Descriptors() {
		var inst instrument
		switch d.Type {
		case metric.TypeCounter:
			counter, err := meter.Float64ObservableCounter(
				d.Name,
				otelmetric.WithDescription(d.Help),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to create counter %q: %w", d.Name, err)
			}
			inst.counter = counter
			observables = append(observables, counter)
		default:
			// Summary and histogram descriptors are observed as gauges;
			// the flattener has already reduced them to plain samples.
			gauge, err := meter.Float64ObservableGauge(
				d.Name,
				otelmetric.WithDescription(d.Help),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to create gauge %q: %w", d.Name, err)
			}
			inst.gauge = gauge
			observables = append(observables, gauge)
		}
		e.instruments[d.Name] = inst

		slog.Info("registered otel metric", "name", d.Name, "type", d.Type)
	}

	if _, err := meter.RegisterCallback(e.observe, observables...); err != nil {
		return nil, fmt.Errorf("failed to register callback: %w", err)
	}

	return e, nil
}

// observe collects the registry and reports every sample.
func (e *OTELExporter) observe(ctx context.Context, observer otelmetric.Observer) error {
	collected, err := e.registry.Collect()
	if err != nil {
		return err
	}

	for _, c := range collected {
		inst := e.instruments[c.Descriptor.Name]
		for _, s := range c.Samples {
			attrs := make([]attribute.KeyValue, 0, len(s.Labels))
			for _, l := range s.Labels {
				attrs = append(attrs, attribute.String(l.Key, l.Value))
			}
			opt := otelmetric.WithAttributes(attrs...)
			if inst.counter != nil {
				observer.ObserveFloat64(inst.counter, s.Value, opt)
			}
			if inst.gauge != nil {
				observer.ObserveFloat64(inst.gauge, s.Value, opt)
			}
		}
	}
	return nil
}

// Start blocks until ctx is done; the periodic reader pushes on its
// own schedule.
func (e *OTELExporter) Start(ctx context.Context) error {
	slog.Info("starting otel exporter",
		"endpoint", e.config.Endpoint,
		"protocol", e.config.Protocol,
		"push_interval", e.config.Interval.Push,
	)

	<-ctx.Done()
	return e.Stop()
}

// Stop flushes and shuts down the meter provider.
func (e *OTELExporter) Stop() error {
	slog.Info("shutting down otel exporter")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return e.meterProvider.Shutdown(ctx)
}

func newResource(resourceAttrs map[string]string) (*resource.Resource, error) {
	attrs := make([]attribute.KeyValue, 0, len(resourceAttrs))
	for k, v := range resourceAttrs {
		attrs = append(attrs, attribute.String(k, v))
	}
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// newReader builds the periodic OTLP reader for the configured
// transport protocol.
func newReader(cfg *config.OTELExportConfig) (sdkmetric.Reader, error) {
	var (
		exp sdkmetric.Exporter
		err error
	)
	switch cfg.Protocol {
	case "grpc":
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
			otlpmetricgrpc.WithInsecure(),
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(cfg.Headers))
		}
		exp, err = otlpmetricgrpc.New(context.Background(), opts...)
	default:
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
			otlpmetrichttp.WithInsecure(),
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(cfg.Headers))
		}
		exp, err = otlpmetrichttp.New(context.Background(), opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	return sdkmetric.NewPeriodicReader(
		exp,
		sdkmetric.WithInterval(cfg.Interval.Push),
	), nil
}
