package metric

import "errors"

var (
	// ErrShape reports that a value was still composite after all
	// declared label axes were consumed. This is a wiring mistake in
	// the metric definition, not a runtime condition.
	ErrShape = errors.New("metric value deeper than declared label axes")

	// ErrDuplicate reports a second registration under an existing
	// metric name.
	ErrDuplicate = errors.New("duplicate metric name")

	// ErrUnavailable reports that a backend session is not in a usable
	// state (initialization failed, or the session was fully torn down).
	ErrUnavailable = errors.New("backend unavailable")

	// ErrQueryTimeout reports that a descriptor's query exceeded the
	// registry's per-query deadline.
	ErrQueryTimeout = errors.New("query timed out")

	// ErrQueryInFlight reports that a previous, timed-out invocation of
	// the descriptor's query is still running. A fresh invocation is
	// not started until the old one delivers.
	ErrQueryInFlight = errors.New("previous query still running")
)
