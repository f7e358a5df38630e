package report

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSnapshotWithoutGPU(t *testing.T) {
	r := New(nil, nil, 5, nil)
	snap := r.Snapshot()

	if snap.GPUs != nil {
		t.Error("expected no gpus entry without a backend")
	}
	if snap.GeneratedAt.IsZero() {
		t.Error("generated_at not set")
	}
	if len(snap.Processes) == 0 {
		t.Error("expected at least the test process in the list")
	}
	if len(snap.Processes) > 5 {
		t.Errorf("process limit not applied: %d", len(snap.Processes))
	}
}

func TestProcessOrdering(t *testing.T) {
	r := New(nil, nil, DefaultProcessLimit, nil)
	procs := r.topProcesses()
	for i := 1; i < len(procs); i++ {
		if procs[i].CPUPercent > procs[i-1].CPUPercent {
			t.Fatalf("processes not sorted by cpu: %v > %v at %d",
				procs[i].CPUPercent, procs[i-1].CPUPercent, i)
		}
	}
}

func TestHandlerServesJSON(t *testing.T) {
	r := New(nil, nil, 3, nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type %q", ct)
	}
	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
}
