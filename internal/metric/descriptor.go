package metric

import (
	"fmt"
)

// Type is the semantic type of a metric, as advertised on its TYPE line.
type Type string

const (
	TypeGauge     Type = "gauge"
	TypeCounter   Type = "counter"
	TypeSummary   Type = "summary"
	TypeHistogram Type = "histogram"
)

func validType(t Type) bool {
	switch t {
	case TypeGauge, TypeCounter, TypeSummary, TypeHistogram:
		return true
	}
	return false
}

// QueryFunc produces a fresh value for one poll. Implementations owning
// delta state must be single long-lived instances reused across polls.
type QueryFunc func() (Value, error)

// Descriptor defines one metric: its exposition identity, the query
// producing its value, and how that value flattens into labeled lines.
// Descriptors are immutable after registration.
type Descriptor struct {
	Name   string
	Help   string
	Type   Type
	Unit   string
	Axes   []string
	Query  QueryFunc
	Format func(float64) float64

	// Session, when set, ties this descriptor's availability to a
	// shared backend. The registry enters the session around each
	// render; a failed or torn-down session substitutes a warning line
	// for the data.
	Session *Session
}

// Render produces the descriptor's exposition lines: HELP, TYPE,
// optional UNIT, then one data line per flattened sample. A query error
// is isolated to this descriptor: it yields a single WARNING line and
// no data lines. A shape error is a wiring mistake and propagates.
func (d *Descriptor) Render() ([]string, error) {
	lines := []string{
		fmt.Sprintf("# HELP %s %s", d.Name, d.Help),
		fmt.Sprintf("# TYPE %s %s", d.Name, d.Type),
	}
	if d.Unit != "" {
		lines = append(lines, fmt.Sprintf("# UNIT %s %s", d.Name, d.Unit))
	}

	v, err := d.Query()
	if err != nil {
		lines = append(lines, fmt.Sprintf("# WARNING %s query failed: %v", d.Name, err))
		return lines, nil
	}

	samples, err := Flatten(v, d.Axes, d.Format)
	if err != nil {
		return nil, fmt.Errorf("metric %q: %w", d.Name, err)
	}
	for _, s := range samples {
		lines = append(lines, renderSample(d.Name, s))
	}
	return lines, nil
}

// renderUnavailable is the substitute output when the descriptor's
// backend session is not usable.
func (d *Descriptor) renderUnavailable(reason string) []string {
	return []string{fmt.Sprintf("# WARNING `%s` not available; %s", d.Name, reason)}
}
