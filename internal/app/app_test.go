package app

import (
	"testing"

	"github.com/hostbox/hostbox/internal/config"
	"github.com/hostbox/hostbox/internal/metric"
)

type stubBackend struct {
	inits     int
	teardowns int
}

func (b *stubBackend) Initialize() error {
	b.inits++
	return nil
}

func (b *stubBackend) Teardown() {
	b.teardowns++
}

func TestOpenPinsReporterSession(t *testing.T) {
	b := &stubBackend{}
	a := &App{
		Metrics:    metric.NewRegistry(0, nil),
		gpuSession: metric.NewSession("gpu", b, nil),
	}
	a.Open()

	// Two snapshot-style enter/exit cycles; the app's pin must keep
	// the backend alive between them even though the registry holds no
	// reference of its own.
	for i := 0; i < 2; i++ {
		if err := a.gpuSession.Enter(); err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
		a.gpuSession.Exit()
	}
	if b.teardowns != 0 {
		t.Error("backend torn down while the app held its session")
	}

	a.Close()
	if b.inits != 1 || b.teardowns != 1 {
		t.Errorf("expected 1 init / 1 teardown, got %d / %d", b.inits, b.teardowns)
	}
}

func TestNewKeepsGPUSessionWhenMetricDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Collect.Disabled = []string{"gpu"}

	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range a.Metrics.Descriptors() {
		if d.Name == "gpu" {
			t.Fatal("gpu metric registered despite being disabled")
		}
	}
	if a.gpuSession == nil {
		t.Error("reporter session dropped along with the disabled metric")
	}
}
