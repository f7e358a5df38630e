package collect

import (
	"fmt"
	"strconv"

	"github.com/hostbox/hostbox/internal/metric"
	"github.com/shirou/gopsutil/v4/cpu"
)

// cpuFields are the reported allocation buckets, in render order.
var cpuFields = []string{"user", "system", "idle", "iowait", "allirq", "other"}

// newCPUQuery builds the per-CPU allocation query. gopsutil exposes
// cumulative jiffy counters; each bucket's share of an interval is the
// ratio of its delta to the total delta. The ratio helpers are keyed
// per CPU and per bucket and live for the process lifetime, so this
// must be constructed once, not per request. The first poll omits all
// fields (no interval yet).
func newCPUQuery() metric.QueryFunc {
	var ratios metric.RatioSet

	return func() (metric.Value, error) {
		times, err := cpu.Times(true)
		if err != nil {
			return metric.Value{}, fmt.Errorf("reading cpu times: %w", err)
		}

		var cpus []metric.Value
		for i, t := range times {
			buckets := map[string]float64{
				"user":   t.User,
				"system": t.System,
				"idle":   t.Idle,
				"iowait": t.Iowait,
				"allirq": t.Irq + t.Softirq,
				"other":  t.Nice + t.Steal + t.Guest + t.GuestNice,
			}
			total := 0.0
			for _, v := range buckets {
				total += v
			}

			var b metric.RecordBuilder
			for _, name := range cpuFields {
				key := strconv.Itoa(i) + "/" + name
				if share, ok := ratios.Ratio(key).Next(buckets[name], total); ok {
					b.SetScalar(name, share)
				}
			}
			cpus = append(cpus, b.Value())
		}
		return metric.Seq(cpus...), nil
	}
}
