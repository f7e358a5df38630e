package collect

import (
	"fmt"

	"github.com/hostbox/hostbox/internal/metric"
	"github.com/shirou/gopsutil/v4/sensors"
)

// thermalBackend is the sensor-subsystem session. Initialization
// enumerates thermal sensor keys once; hosts without readable sensors
// fail initialization and the temp metric degrades to a warning line.
// The key set is fixed for the session's lifetime.
type thermalBackend struct {
	read func() ([]sensors.TemperatureStat, error)
	keys []string
}

func newThermalBackend() *thermalBackend {
	return &thermalBackend{read: sensors.SensorsTemperatures}
}

func (b *thermalBackend) Initialize() error {
	stats, err := b.read()
	if err != nil {
		return fmt.Errorf("enumerating thermal sensors: %w", err)
	}
	seen := map[string]struct{}{}
	for _, s := range stats {
		if s.SensorKey == "" {
			continue
		}
		if _, dup := seen[s.SensorKey]; dup {
			continue
		}
		seen[s.SensorKey] = struct{}{}
		b.keys = append(b.keys, s.SensorKey)
	}
	if len(b.keys) == 0 {
		return fmt.Errorf("no thermal sensors found")
	}
	return nil
}

func (b *thermalBackend) Teardown() {
	b.keys = nil
}

func (b *thermalBackend) query() (metric.Value, error) {
	stats, err := b.read()
	if err != nil {
		return metric.Value{}, fmt.Errorf("reading thermal sensors: %w", err)
	}
	current := make(map[string]float64, len(stats))
	for _, s := range stats {
		current[s.SensorKey] = s.Temperature
	}

	var rec metric.RecordBuilder
	for _, key := range b.keys {
		if v, ok := current[key]; ok {
			rec.SetScalar(key, v)
		}
	}
	return rec.Value(), nil
}

// NewThermalDescriptor returns the session-scoped temperature metric
// for registration alongside the host set.
func NewThermalDescriptor() *metric.Descriptor {
	backend := newThermalBackend()
	session := metric.NewSession("sensors", backend, nil)
	return &metric.Descriptor{
		Name:    "temp",
		Help:    "thermal sensor readings",
		Type:    metric.TypeGauge,
		Unit:    "celsius",
		Axes:    []string{"sensor"},
		Query:   backend.query,
		Session: session,
	}
}
