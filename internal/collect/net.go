package collect

import (
	"fmt"

	"github.com/hostbox/hostbox/internal/metric"
	"github.com/shirou/gopsutil/v4/net"
)

// newNetQuery builds the per-interface byte counter query.
func newNetQuery(excludeNICs []string) metric.QueryFunc {
	excluded := func(name string) bool {
		for _, n := range excludeNICs {
			if n == name {
				return true
			}
		}
		return false
	}

	return func() (metric.Value, error) {
		counters, err := net.IOCounters(true)
		if err != nil {
			return metric.Value{}, fmt.Errorf("reading net io counters: %w", err)
		}

		var b metric.RecordBuilder
		for _, nic := range counters {
			if excluded(nic.Name) {
				continue
			}
			var stat metric.RecordBuilder
			stat.SetScalar("sent", float64(nic.BytesSent))
			stat.SetScalar("recv", float64(nic.BytesRecv))
			b.Set(nic.Name, stat.Value())
		}
		return b.Value(), nil
	}
}
