package metric

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

// fakeBackend counts lifecycle calls and can be told to fail init.
type fakeBackend struct {
	initErr   error
	inits     int
	teardowns int
}

func (b *fakeBackend) Initialize() error {
	b.inits++
	return b.initErr
}

func (b *fakeBackend) Teardown() {
	b.teardowns++
}

func TestSessionTeardownOnLastExit(t *testing.T) {
	b := &fakeBackend{}
	s := NewSession("test", b, nil)

	if err := s.Enter(); err != nil {
		t.Fatalf("first enter: %v", err)
	}
	if err := s.Enter(); err != nil {
		t.Fatalf("second enter: %v", err)
	}
	if b.inits != 1 {
		t.Errorf("expected 1 init, got %d", b.inits)
	}

	s.Exit()
	if b.teardowns != 0 {
		t.Error("teardown ran before last exit")
	}
	s.Exit()
	if b.teardowns != 1 {
		t.Errorf("expected exactly 1 teardown, got %d", b.teardowns)
	}
}

func TestSessionFailedInitIsMemoized(t *testing.T) {
	b := &fakeBackend{initErr: errors.New("library not found")}
	s := NewSession("gpu", b, nil)

	for i := 0; i < 3; i++ {
		if err := s.Enter(); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("enter %d: expected ErrUnavailable, got %v", i, err)
		}
	}
	if b.inits != 1 {
		t.Errorf("init retried: %d attempts", b.inits)
	}

	s.Exit() // no-op on a failed session
	if b.teardowns != 0 {
		t.Error("teardown must never run for a failed init")
	}
	if !strings.Contains(s.Reason(), "library not found") {
		t.Errorf("reason should carry the init error, got %q", s.Reason())
	}
}

func TestSessionNotReentrantAfterTeardown(t *testing.T) {
	b := &fakeBackend{}
	s := NewSession("test", b, nil)

	if err := s.Enter(); err != nil {
		t.Fatal(err)
	}
	s.Exit()

	if err := s.Enter(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable after full teardown, got %v", err)
	}
	if b.inits != 1 || b.teardowns != 1 {
		t.Errorf("expected 1 init / 1 teardown, got %d / %d", b.inits, b.teardowns)
	}
}

func TestSessionConcurrentEnterExit(t *testing.T) {
	b := &fakeBackend{}
	s := NewSession("test", b, nil)

	// Pin one reference so concurrent pairs never reach zero.
	if err := s.Enter(); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Enter(); err != nil {
				t.Errorf("enter: %v", err)
				return
			}
			s.Exit()
		}()
	}
	wg.Wait()

	if b.teardowns != 0 {
		t.Error("teardown ran while the pin was held")
	}
	s.Exit()
	if b.inits != 1 || b.teardowns != 1 {
		t.Errorf("expected 1 init / 1 teardown, got %d / %d", b.inits, b.teardowns)
	}
}
