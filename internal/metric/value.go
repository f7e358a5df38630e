package metric

// Kind identifies the shape of a Value.
type Kind int

const (
	KindScalar Kind = iota
	KindSequence
	KindRecord
)

// Value is the closed variant produced by metric query functions: a
// scalar number, an ordered sequence, or a record with named fields.
// Values are built fresh on every poll and carry no identity.
type Value struct {
	kind   Kind
	scalar float64
	seq    []Value
	fields []Field
}

// Field is one named entry of a record. Records preserve field order so
// that rendered output is stable across polls regardless of how the
// backing data was gathered.
type Field struct {
	Name  string
	Value Value
}

// Scalar wraps a number.
func Scalar(v float64) Value {
	return Value{kind: KindScalar, scalar: v}
}

// Bool wraps a boolean, rendered as 1 or 0.
func Bool(b bool) Value {
	if b {
		return Scalar(1)
	}
	return Scalar(0)
}

// Seq wraps an ordered sequence of values.
func Seq(vs ...Value) Value {
	return Value{kind: KindSequence, seq: vs}
}

// Record builds a record from fields, preserving their order.
func Record(fields ...Field) Value {
	return Value{kind: KindRecord, fields: fields}
}

// Kind reports the shape of the value.
func (v Value) Kind() Kind { return v.kind }

// Float returns the scalar payload. Only meaningful for KindScalar.
func (v Value) Float() float64 { return v.scalar }

// Len returns the number of elements or fields.
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.seq)
	case KindRecord:
		return len(v.fields)
	default:
		return 0
	}
}

// RecordBuilder accumulates fields for a record whose content is
// decided incrementally (e.g. ratio fields that may be omitted for a
// poll). The zero value is ready to use.
type RecordBuilder struct {
	fields []Field
}

// Set appends a field.
func (b *RecordBuilder) Set(name string, v Value) *RecordBuilder {
	b.fields = append(b.fields, Field{Name: name, Value: v})
	return b
}

// SetScalar appends a scalar field.
func (b *RecordBuilder) SetScalar(name string, v float64) *RecordBuilder {
	return b.Set(name, Scalar(v))
}

// Value finalizes the record.
func (b *RecordBuilder) Value() Value {
	return Value{kind: KindRecord, fields: b.fields}
}
