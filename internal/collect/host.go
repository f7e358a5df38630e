package collect

import (
	"fmt"

	"github.com/hostbox/hostbox/internal/metric"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

func loadQuery() (metric.Value, error) {
	avg, err := load.Avg()
	if err != nil {
		return metric.Value{}, fmt.Errorf("reading load average: %w", err)
	}
	return metric.Scalar(avg.Load1), nil
}

func uptimeQuery() (metric.Value, error) {
	up, err := host.Uptime()
	if err != nil {
		return metric.Value{}, fmt.Errorf("reading uptime: %w", err)
	}
	return metric.Scalar(float64(up)), nil
}

func vmemQuery() (metric.Value, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return metric.Value{}, fmt.Errorf("reading virtual memory: %w", err)
	}
	var b metric.RecordBuilder
	b.SetScalar("used", vm.UsedPercent/100)
	if vm.Total > 0 {
		b.SetScalar("cached", float64(vm.Cached)/float64(vm.Total))
	}
	return b.Value(), nil
}

func swapQuery() (metric.Value, error) {
	sw, err := mem.SwapMemory()
	if err != nil {
		return metric.Value{}, fmt.Errorf("reading swap: %w", err)
	}
	return metric.Record(
		metric.Field{Name: "used", Value: metric.Scalar(sw.UsedPercent / 100)},
	), nil
}
