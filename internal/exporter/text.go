// Package exporter renders the metric registry outward: the custom
// text exposition endpoint with Prometheus self-metrics, and an
// optional OTLP push pipeline.
package exporter

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hostbox/hostbox/internal/metric"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Internal metric names for the exporter's own operation.
const (
	scrapesTotalName   = "hostbox_scrapes_total"
	scrapeDurationName = "hostbox_scrape_duration_seconds"
)

// TextExporter serves the registry's exposition body. The body is
// rendered per request into its own buffer; no render state is shared
// between concurrent scrapes.
type TextExporter struct {
	registry *metric.Registry
	path     string

	promRegistry *prometheus.Registry
	scrapesTotal prometheus.Counter
	scrapeDur    prometheus.Histogram
}

// NewText creates the exposition exporter. When internalMetrics is set,
// scrape count and duration are tracked with the Prometheus client and
// served at /internal/metrics.
func NewText(registry *metric.Registry, path string, internalMetrics bool) *TextExporter {
	e := &TextExporter{registry: registry, path: path}

	if internalMetrics {
		e.promRegistry = prometheus.NewRegistry()
		e.scrapesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: scrapesTotalName,
			Help: "Total number of scrape requests",
		})
		e.scrapeDur = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    scrapeDurationName,
			Help:    "Duration of scrape requests in seconds",
			Buckets: prometheus.DefBuckets,
		})
		e.promRegistry.MustRegister(e.scrapesTotal, e.scrapeDur)
		slog.Info("registered exporter internal metrics",
			"scrapes_total", scrapesTotalName,
			"scrape_duration", scrapeDurationName)
	}

	return e
}

// Handler returns the exporter mux. extra handlers (the snapshot
// reporter) are mounted on their own paths.
func (e *TextExporter) Handler(extra map[string]http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(e.path, e.instrumented(http.HandlerFunc(e.serveExposition)))
	if e.promRegistry != nil {
		mux.Handle("/internal/metrics", promhttp.HandlerFor(
			e.promRegistry,
			promhttp.HandlerOpts{},
		))
	}
	for path, h := range extra {
		mux.Handle(path, h)
	}
	return mux
}

// serveExposition writes the rendered registry. Runtime failures are
// already inline WARNING lines in the body; a render error here means a
// miswired metric shape.
func (e *TextExporter) serveExposition(w http.ResponseWriter, r *http.Request) {
	body, err := e.registry.Render()
	if err != nil {
		slog.Error("render failed", "error", err)
		http.Error(w, "metric shape error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(body))
}

// instrumented wraps the exposition handler with self-metrics.
func (e *TextExporter) instrumented(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			if e.scrapesTotal != nil {
				e.scrapesTotal.Inc()
			}
			if e.scrapeDur != nil {
				e.scrapeDur.Observe(time.Since(start).Seconds())
			}
		}()

		next.ServeHTTP(w, r)
	})
}
