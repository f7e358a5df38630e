package metric

// RunningDelta turns a monotonic counter into per-poll increments. The
// first call seeds the baseline and returns 0, avoiding a spurious huge
// delta on the first scrape. Not safe for concurrent use; the registry
// serializes renders of a single descriptor.
type RunningDelta struct {
	prev   float64
	seeded bool
}

// Next records the current counter reading and returns the increment
// since the previous call.
func (r *RunningDelta) Next(current float64) float64 {
	if !r.seeded {
		r.seeded = true
		r.prev = current
		return 0
	}
	delta := current - r.prev
	r.prev = current
	return delta
}

// Ratio derives a per-interval average from two monotonic counters,
// e.g. bytes over operation count. Valid reports whether the
// denominator advanced this poll; when it did not, the caller must omit
// the field entirely rather than emit zero or NaN.
type Ratio struct {
	num RunningDelta
	den RunningDelta
}

// Next feeds both counters and returns their delta ratio.
func (r *Ratio) Next(num, den float64) (v float64, valid bool) {
	dn := r.num.Next(num)
	dd := r.den.Next(den)
	if dd <= 0 {
		return 0, false
	}
	return dn / dd, true
}

// DeltaSet holds independent RunningDelta instances keyed by a label
// axis value (one per mountpoint, NIC, CPU, ...). Instances are created
// on first sight and retained for the process lifetime so their
// baselines survive across polls.
type DeltaSet struct {
	deltas map[string]*RunningDelta
}

// Delta returns the instance for key, creating it if needed.
func (s *DeltaSet) Delta(key string) *RunningDelta {
	if s.deltas == nil {
		s.deltas = make(map[string]*RunningDelta)
	}
	d, ok := s.deltas[key]
	if !ok {
		d = &RunningDelta{}
		s.deltas[key] = d
	}
	return d
}

// RatioSet is DeltaSet's counterpart for Ratio helpers.
type RatioSet struct {
	ratios map[string]*Ratio
}

// Ratio returns the instance for key, creating it if needed.
func (s *RatioSet) Ratio(key string) *Ratio {
	if s.ratios == nil {
		s.ratios = make(map[string]*Ratio)
	}
	r, ok := s.ratios[key]
	if !ok {
		r = &Ratio{}
		s.ratios[key] = r
	}
	return r
}
