package collect

import (
	"fmt"
	"strings"

	"github.com/hostbox/hostbox/internal/metric"
	"github.com/shirou/gopsutil/v4/disk"
)

// newDiskQuery builds the per-mountpoint disk query: current usage plus
// per-interval mean request size and latency derived from the kernel's
// cumulative I/O counters. Each mountpoint gets its own ratio helpers,
// created on first sight; size and time ratios are gated on their own
// operation-count delta, so a poll with reads but no writes reports
// read_size and omits write_size.
func newDiskQuery(excludeMounts []string) metric.QueryFunc {
	var ratios metric.RatioSet
	excluded := func(mount string) bool {
		for _, m := range excludeMounts {
			if m == mount {
				return true
			}
		}
		return false
	}

	return func() (metric.Value, error) {
		parts, err := disk.Partitions(false)
		if err != nil {
			return metric.Value{}, fmt.Errorf("listing partitions: %w", err)
		}
		counters, err := disk.IOCounters()
		if err != nil {
			return metric.Value{}, fmt.Errorf("reading disk io counters: %w", err)
		}

		var b metric.RecordBuilder
		for _, p := range parts {
			if excluded(p.Mountpoint) {
				continue
			}
			ioc, ok := counters[strings.TrimPrefix(p.Device, "/dev/")]
			if !ok {
				continue
			}
			usage, err := disk.Usage(p.Mountpoint)
			if err != nil {
				continue
			}

			var stat metric.RecordBuilder
			stat.SetScalar("used", usage.UsedPercent/100)

			rc := float64(ioc.ReadCount)
			wc := float64(ioc.WriteCount)
			if v, ok := ratios.Ratio(p.Mountpoint+"/read_size").Next(float64(ioc.ReadBytes), rc); ok {
				stat.SetScalar("read_size", v)
			}
			if v, ok := ratios.Ratio(p.Mountpoint+"/write_size").Next(float64(ioc.WriteBytes), wc); ok {
				stat.SetScalar("write_size", v)
			}
			if v, ok := ratios.Ratio(p.Mountpoint+"/read_time").Next(float64(ioc.ReadTime), rc); ok {
				stat.SetScalar("read_time", v/1000)
			}
			if v, ok := ratios.Ratio(p.Mountpoint+"/write_time").Next(float64(ioc.WriteTime), wc); ok {
				stat.SetScalar("write_time", v/1000)
			}

			b.Set(p.Mountpoint, stat.Value())
		}
		return b.Value(), nil
	}
}
