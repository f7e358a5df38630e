package metric

import (
	"log/slog"
	"sync"
)

// Backend is a shared subsystem handle set (GPU monitoring context,
// sensor library context). Initialize is attempted at most once per
// process; Teardown runs exactly when the last scope exits.
type Backend interface {
	// Initialize acquires the subsystem and performs one-time device
	// discovery. Called under the session lock, at most once.
	Initialize() error

	// Teardown releases the subsystem. Called under the session lock
	// when the refcount returns to zero.
	Teardown()
}

type sessionState int

const (
	stateUnattempted sessionState = iota
	stateSuccess
	stateFailed
	stateTornDown
)

// Session reference-counts use of a Backend across the descriptors that
// share it. Initialization is lazy and memoized: the first Enter
// attempts it, and the outcome (success or failure) holds for the
// process lifetime. A session is not re-entrant after its refcount has
// returned to zero and teardown has run; in practice teardown happens
// once, near process shutdown.
type Session struct {
	name    string
	backend Backend
	logger  *slog.Logger

	mu      sync.Mutex
	state   sessionState
	initErr error
	refs    int
}

// NewSession wraps a backend. name appears in warning lines and logs.
func NewSession(name string, backend Backend, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{name: name, backend: backend, logger: logger}
}

// Name returns the backend kind's name.
func (s *Session) Name() string { return s.name }

// Enter acquires a reference. On the first call it attempts backend
// initialization; success and failure are both memoized. Entering a
// failed or torn-down session is a no-op returning ErrUnavailable.
func (s *Session) Enter() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateUnattempted:
		if err := s.backend.Initialize(); err != nil {
			s.state = stateFailed
			s.initErr = err
			s.logger.Warn("backend initialization failed", "session", s.name, "error", err)
			return ErrUnavailable
		}
		s.state = stateSuccess
		s.logger.Info("backend initialized", "session", s.name)
	case stateFailed, stateTornDown:
		return ErrUnavailable
	}

	s.refs++
	return nil
}

// Exit releases a reference. The backend is torn down exactly when the
// count returns to zero. Exit on a failed session is a no-op.
func (s *Session) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateSuccess || s.refs == 0 {
		return
	}
	s.refs--
	if s.refs == 0 {
		s.backend.Teardown()
		s.state = stateTornDown
		s.logger.Info("backend torn down", "session", s.name)
	}
}

// Reason describes why the session is unusable, for warning lines.
func (s *Session) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateFailed:
		return s.initErr.Error()
	case stateTornDown:
		return "backend torn down"
	default:
		return "backend not initialized"
	}
}

// Available reports whether the session is currently usable.
func (s *Session) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateSuccess
}
