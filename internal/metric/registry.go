package metric

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultQueryTimeout bounds a single descriptor's query. A timeout is
// reported as that descriptor's query failure, never a process crash.
const DefaultQueryTimeout = 5 * time.Second

// Registry is the process-wide ordered collection of descriptors.
// Registration happens once at startup, before serving begins; render
// order is registration order so output is deterministic.
type Registry struct {
	descriptors  []*Descriptor
	names        map[string]struct{}
	queryTimeout time.Duration
	logger       *slog.Logger

	// pinned holds the startup reference on each distinct session so
	// that per-request Exit never drives a refcount to zero mid-flight.
	// Teardown runs when Close releases these at shutdown.
	pinned []*Session

	// renderMu serializes full render passes: delta helpers owned by
	// query functions keep per-poll state that concurrent scrapes must
	// not interleave.
	renderMu sync.Mutex

	// stale maps a descriptor to the result channel of a timed-out
	// query invocation that is still running. Guarded by renderMu.
	stale map[*Descriptor]chan queryResult
}

// NewRegistry creates an empty registry.
func NewRegistry(queryTimeout time.Duration, logger *slog.Logger) *Registry {
	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		names:        make(map[string]struct{}),
		queryTimeout: queryTimeout,
		logger:       logger,
		stale:        make(map[*Descriptor]chan queryResult),
	}
}

// Register adds a descriptor. Duplicate names and malformed descriptors
// are startup errors.
func (r *Registry) Register(d *Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("metric with empty name")
	}
	if !validType(d.Type) {
		return fmt.Errorf("metric %q: invalid type %q", d.Name, d.Type)
	}
	if d.Query == nil {
		return fmt.Errorf("metric %q: nil query", d.Name)
	}
	if _, exists := r.names[d.Name]; exists {
		return fmt.Errorf("metric %q: %w", d.Name, ErrDuplicate)
	}
	r.names[d.Name] = struct{}{}
	r.descriptors = append(r.descriptors, d)
	r.logger.Info("registered metric", "name", d.Name, "type", d.Type, "axes", d.Axes)
	return nil
}

// MustRegister is Register that panics, for startup wiring.
func (r *Registry) MustRegister(ds ...*Descriptor) {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Descriptors returns the registered descriptors in render order.
func (r *Registry) Descriptors() []*Descriptor {
	return r.descriptors
}

// Open takes the long-lived reference on every distinct session used by
// registered descriptors. Backends that fail to initialize stay failed
// for the process lifetime; their descriptors render warning lines.
// Call once at startup, pair with Close at shutdown.
func (r *Registry) Open() {
	seen := make(map[*Session]struct{})
	for _, d := range r.descriptors {
		if d.Session == nil {
			continue
		}
		if _, ok := seen[d.Session]; ok {
			continue
		}
		seen[d.Session] = struct{}{}
		if err := d.Session.Enter(); err != nil {
			r.logger.Warn("session unavailable", "session", d.Session.Name(), "error", err)
			continue
		}
		r.pinned = append(r.pinned, d.Session)
	}
}

// Close releases the startup session references, triggering backend
// teardown once no other scope holds them.
func (r *Registry) Close() {
	for _, s := range r.pinned {
		s.Exit()
	}
	r.pinned = nil
}

// Render produces the full exposition body: all descriptors in
// registration order, blank-line separated. Each session-bound
// descriptor's scope is entered for the duration of its render and
// exited on all paths. Per-descriptor failures surface as WARNING
// lines; only shape errors (wiring mistakes) propagate.
func (r *Registry) Render() (string, error) {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	var b strings.Builder
	for i, d := range r.descriptors {
		if i > 0 {
			b.WriteString("\n")
		}
		lines, err := r.renderOne(d)
		if err != nil {
			return "", err
		}
		for _, line := range lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func (r *Registry) renderOne(d *Descriptor) ([]string, error) {
	if d.Session != nil {
		if err := d.Session.Enter(); err != nil {
			return d.renderUnavailable(d.Session.Reason()), nil
		}
		defer d.Session.Exit()
	}

	bounded := *d
	bounded.Query = r.boundQuery(d)
	return bounded.Render()
}

// queryResult carries a query's outcome across the timeout boundary.
type queryResult struct {
	v   Value
	err error
}

// boundQuery wraps a descriptor's query with the registry deadline. The
// underlying query has no cancellation hook (device I/O), so on timeout
// the goroutine keeps running: its channel is parked in stale, and the
// descriptor reports in-flight failures until the old invocation
// delivers, whose result is then discarded. A stateful query closure is
// therefore never executed by two goroutines at once.
func (r *Registry) boundQuery(d *Descriptor) QueryFunc {
	return func() (Value, error) {
		if old, ok := r.stale[d]; ok {
			select {
			case <-old:
				delete(r.stale, d)
			default:
				return Value{}, ErrQueryInFlight
			}
		}

		ch := make(chan queryResult, 1)
		go func() {
			v, err := d.Query()
			ch <- queryResult{v, err}
		}()
		select {
		case res := <-ch:
			return res.v, res.err
		case <-time.After(r.queryTimeout):
			r.stale[d] = ch
			r.logger.Warn("query timed out", "name", d.Name, "timeout", r.queryTimeout)
			return Value{}, ErrQueryTimeout
		}
	}
}

// Collected pairs a descriptor with its flattened samples for
// push-based exports. Samples is nil when the backend was unavailable
// or the query failed; push consumers simply skip that cycle.
type Collected struct {
	Descriptor *Descriptor
	Samples    []Sample
}

// Collect gathers every descriptor's current samples, entering and
// exiting session scopes exactly as Render does. Shape errors
// propagate; per-descriptor runtime failures yield nil samples.
func (r *Registry) Collect() ([]Collected, error) {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	out := make([]Collected, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		samples, err := r.collectOne(d)
		if err != nil {
			return nil, err
		}
		out = append(out, Collected{Descriptor: d, Samples: samples})
	}
	return out, nil
}

func (r *Registry) collectOne(d *Descriptor) ([]Sample, error) {
	if d.Session != nil {
		if err := d.Session.Enter(); err != nil {
			return nil, nil
		}
		defer d.Session.Exit()
	}

	v, err := r.boundQuery(d)()
	if err != nil {
		r.logger.Warn("query failed", "name", d.Name, "error", err)
		return nil, nil
	}
	samples, err := Flatten(v, d.Axes, d.Format)
	if err != nil {
		return nil, fmt.Errorf("metric %q: %w", d.Name, err)
	}
	return samples, nil
}
