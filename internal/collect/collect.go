// Package collect defines the host metric set: gopsutil-backed query
// functions wrapped in metric descriptors, registered in a fixed order
// so the exposition output is deterministic.
package collect

import (
	"fmt"
	"log/slog"

	"github.com/hostbox/hostbox/internal/metric"
)

// Config narrows what the host collectors report.
type Config struct {
	// Disabled lists metric names to skip at registration.
	Disabled []string

	// ExcludeMounts lists mountpoints omitted from the disk metric.
	// Defaults to /boot when empty.
	ExcludeMounts []string

	// ExcludeNICs lists interfaces omitted from the network metric.
	// Defaults to lo when empty.
	ExcludeNICs []string
}

func (c Config) disabled(name string) bool {
	for _, d := range c.Disabled {
		if d == name {
			return true
		}
	}
	return false
}

// Register adds the host metric set to the registry, followed by any
// extra descriptors (the session-scoped sensor and GPU metrics). Nil
// extras are skipped.
func Register(reg *metric.Registry, cfg Config, extra ...*metric.Descriptor) error {
	mounts := cfg.ExcludeMounts
	if mounts == nil {
		mounts = []string{"/boot"}
	}
	nics := cfg.ExcludeNICs
	if nics == nil {
		nics = []string{"lo"}
	}

	descriptors := []*metric.Descriptor{
		{
			Name:  "load",
			Help:  "one-minute average of run-queue length, the classic unix system load",
			Type:  metric.TypeGauge,
			Query: loadQuery,
		},
		{
			Name:  "uptime",
			Help:  "time since last boot",
			Type:  metric.TypeGauge,
			Unit:  "seconds",
			Query: uptimeQuery,
		},
		{
			Name:  "cpu",
			Help:  "cpu allocation",
			Type:  metric.TypeGauge,
			Unit:  "percent",
			Axes:  []string{"id", "type"},
			Query: newCPUQuery(),
		},
		{
			Name:  "irq",
			Help:  "number of interrupts",
			Type:  metric.TypeCounter,
			Axes:  []string{"type"},
			Query: newStatQuery("/proc"),
		},
		{
			Name:  "vmem",
			Help:  "virtual memory statistics",
			Type:  metric.TypeGauge,
			Unit:  "percent",
			Axes:  []string{"type"},
			Query: vmemQuery,
		},
		{
			Name:  "swap",
			Help:  "swap memory",
			Type:  metric.TypeGauge,
			Unit:  "percent",
			Axes:  []string{"type"},
			Query: swapQuery,
		},
		{
			Name:  "disk",
			Help:  "disk statistics",
			Type:  metric.TypeGauge,
			Unit:  "used=percent *_size=bytes *_time=seconds",
			Axes:  []string{"path", "type"},
			Query: newDiskQuery(mounts),
		},
		{
			Name:  "network",
			Help:  "network i/o",
			Type:  metric.TypeCounter,
			Unit:  "bytes",
			Axes:  []string{"id", "type"},
			Query: newNetQuery(nics),
		},
	}
	descriptors = append(descriptors, extra...)

	for _, d := range descriptors {
		if d == nil {
			continue
		}
		if cfg.disabled(d.Name) {
			slog.Info("metric disabled by config", "name", d.Name)
			continue
		}
		if err := reg.Register(d); err != nil {
			return fmt.Errorf("registering host metrics: %w", err)
		}
	}
	return nil
}
