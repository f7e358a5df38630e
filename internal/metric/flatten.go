package metric

import (
	"fmt"
	"strconv"
)

// Label is one rendered label pair. Order of labels in a Sample follows
// axis declaration order, never map iteration order.
type Label struct {
	Key   string
	Value string
}

// Sample is one flattened data point: the labels accumulated while
// descending the value, and the formatted scalar.
type Sample struct {
	Labels []Label
	Value  float64
}

// Flatten expands a nested value into samples. Axis i names the label
// key contributed at nesting depth i: sequence elements label with
// their index, record fields with their field name. Once axes are
// exhausted the value must be a scalar; anything else is ErrShape.
// format is applied to every scalar before emission; pass nil for
// identity.
func Flatten(v Value, axes []string, format func(float64) float64) ([]Sample, error) {
	var out []Sample
	if err := flatten(v, axes, nil, format, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(v Value, axes []string, labels []Label, format func(float64) float64, out *[]Sample) error {
	if v.kind == KindScalar {
		val := v.scalar
		if format != nil {
			val = format(val)
		}
		// labels aliases the caller's stack of pairs; copy so later
		// siblings cannot overwrite an emitted sample.
		emitted := make([]Label, len(labels))
		copy(emitted, labels)
		*out = append(*out, Sample{Labels: emitted, Value: val})
		return nil
	}

	if len(axes) == 0 {
		return fmt.Errorf("%w: composite value at depth %d", ErrShape, len(labels))
	}

	switch v.kind {
	case KindSequence:
		for i, elem := range v.seq {
			next := append(labels, Label{Key: axes[0], Value: strconv.Itoa(i)})
			if err := flatten(elem, axes[1:], next, format, out); err != nil {
				return err
			}
		}
	case KindRecord:
		for _, f := range v.fields {
			next := append(labels, Label{Key: axes[0], Value: f.Name})
			if err := flatten(f.Value, axes[1:], next, format, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// formatFloat renders a scalar in a fixed, locale-independent form.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// renderSample writes one exposition data line.
func renderSample(name string, s Sample) string {
	if len(s.Labels) == 0 {
		return name + " " + formatFloat(s.Value)
	}
	line := name + "{"
	for i, l := range s.Labels {
		if i > 0 {
			line += ","
		}
		line += l.Key + "=\"" + l.Value + "\""
	}
	return line + "} " + formatFloat(s.Value)
}
