package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"
)

// testUpstream runs a snapshot server and returns its host and port in
// the form the relay expects.
func testUpstream(t *testing.T, handler http.HandlerFunc) (host string, port int) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	p, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	return u.Hostname(), p
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, 9212, time.Minute, nil); err == nil {
		t.Error("expected error for empty upstream list")
	}
	if _, err := New([]string{"a"}, 9212, 0, nil); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestTickIntervalFloored(t *testing.T) {
	// A period shorter than the upstream count would truncate to a
	// zero tick, which NewTicker rejects.
	r, err := New([]string{"a", "b", "c"}, 9212, 2*time.Nanosecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.tickInterval(); got <= 0 {
		t.Fatalf("non-positive tick interval %v", got)
	}

	r, err = New([]string{"a", "b"}, 9212, time.Minute, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.tickInterval(); got != 30*time.Second {
		t.Errorf("tick interval %v, want 30s", got)
	}
}

func TestRefreshRoundRobin(t *testing.T) {
	var hits []string
	host, port := testUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.Path)
		w.Write([]byte(`{"gpus":{}}`))
	})

	// Two logical upstreams backed by the same server; rotation must
	// alternate between them.
	r, err := New([]string{host, host}, port, time.Minute, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		r.refreshNext(ctx)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 upstream hits, got %d", len(hits))
	}
	for _, path := range hits {
		if path != "/snapshot" {
			t.Errorf("unexpected fetch path %q", path)
		}
	}

	snap := r.snapshot()
	if snap[host].Data == nil || snap[host].FetchedAt == nil {
		t.Error("cache entry not populated after refresh")
	}
}

func TestFailedFetchLeavesCacheUntouched(t *testing.T) {
	healthy := true
	host, port := testUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	})

	r, err := New([]string{host}, port, time.Minute, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	r.refreshNext(ctx)
	first := r.snapshot()[host]
	if first.Data == nil {
		t.Fatal("expected data after healthy fetch")
	}

	healthy = false
	r.refreshNext(ctx)
	second := r.snapshot()[host]
	if string(second.Data) != string(first.Data) || !second.FetchedAt.Equal(*first.FetchedAt) {
		t.Error("failed fetch must not replace the cached entry")
	}
}

func TestInvalidJSONRejected(t *testing.T) {
	host, port := testUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	r, err := New([]string{host}, port, time.Minute, nil)
	if err != nil {
		t.Fatal(err)
	}
	r.refreshNext(context.Background())
	if r.snapshot()[host].Data != nil {
		t.Error("invalid JSON must not be cached")
	}
}

func TestUpdateHandler(t *testing.T) {
	host, port := testUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"gpus":{"GPU-a":{"temperature":54}}}`))
	})

	r, err := New([]string{host}, port, time.Minute, nil)
	if err != nil {
		t.Fatal(err)
	}
	r.refreshNext(context.Background())

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/update", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body map[string]Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if body[host].FetchedAt == nil {
		t.Error("response missing fetched_at for refreshed host")
	}
}

func TestDashboardServed(t *testing.T) {
	r, err := New([]string{"h"}, 9212, time.Minute, nil)
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}
