package collect

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hostbox/hostbox/internal/metric"
)

// newStatQuery reads interrupt and context-switch counters from
// /proc/stat. gopsutil has no equivalent of these aggregate counters,
// so they are parsed directly. procRoot is overridable for tests.
func newStatQuery(procRoot string) metric.QueryFunc {
	return func() (metric.Value, error) {
		data, err := os.ReadFile(filepath.Join(procRoot, "stat"))
		if err != nil {
			return metric.Value{}, fmt.Errorf("reading proc stat: %w", err)
		}
		return parseStatCounters(string(data))
	}
}

func parseStatCounters(data string) (metric.Value, error) {
	counters := map[string]float64{}
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "intr", "ctxt", "softirq":
			// First numeric field is the total; per-source columns
			// follow on intr/softirq lines and are not reported.
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				continue
			}
			counters[fields[0]] = v
		}
	}
	if len(counters) == 0 {
		return metric.Value{}, fmt.Errorf("no interrupt counters in proc stat")
	}

	var b metric.RecordBuilder
	for _, name := range []string{"intr", "ctxt", "softirq"} {
		if v, ok := counters[name]; ok {
			b.SetScalar(name, v)
		}
	}
	return b.Value(), nil
}
