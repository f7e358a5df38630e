// Package relay polls a rotating set of upstream hosts for their job
// snapshots and serves the cached results to a browser dashboard. One
// upstream is refreshed per tick, so a full rotation takes the
// configured period regardless of fleet size.
package relay

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

//go:embed static
var staticFS embed.FS

// Entry is one upstream's cached snapshot. Data stays nil until the
// first successful fetch; FetchedAt records when it was obtained.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	FetchedAt *time.Time      `json:"fetched_at"`
}

// Relay owns the cache and the fetch rotation.
type Relay struct {
	upstreams    []string
	reporterPort int
	path         string
	period       time.Duration
	client       *http.Client
	logger       *slog.Logger

	mu    sync.RWMutex
	cache map[string]Entry
	next  int
}

// New creates a relay over the given upstream hosts.
func New(upstreams []string, reporterPort int, period time.Duration, logger *slog.Logger) (*Relay, error) {
	if len(upstreams) == 0 {
		return nil, fmt.Errorf("relay requires at least one upstream")
	}
	if period <= 0 {
		return nil, fmt.Errorf("relay period must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cache := make(map[string]Entry, len(upstreams))
	for _, host := range upstreams {
		cache[host] = Entry{}
	}

	return &Relay{
		upstreams:    upstreams,
		reporterPort: reporterPort,
		path:         "/snapshot",
		period:       period,
		client:       &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
		cache:        cache,
	}, nil
}

// Run refreshes one upstream per tick until ctx is done. The first
// refresh happens immediately.
func (r *Relay) Run(ctx context.Context) {
	interval := r.tickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("relay refresh loop started",
		"upstreams", len(r.upstreams), "interval", interval)

	r.refreshNext(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay refresh loop stopped")
			return
		case <-ticker.C:
			r.refreshNext(ctx)
		}
	}
}

// tickInterval spaces refreshes so one full rotation takes the
// configured period. The integer division reaches zero when the period
// is shorter than the upstream count in nanoseconds, and NewTicker
// panics on non-positive intervals, so the result is floored.
func (r *Relay) tickInterval() time.Duration {
	interval := r.period / time.Duration(len(r.upstreams))
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	return interval
}

// refreshNext fetches the next upstream in rotation. A failed fetch
// leaves the host's cached entry untouched.
func (r *Relay) refreshNext(ctx context.Context) {
	r.mu.Lock()
	host := r.upstreams[r.next%len(r.upstreams)]
	r.next++
	r.mu.Unlock()

	data, err := r.fetch(ctx, host)
	if err != nil {
		r.logger.Warn("upstream fetch failed", "host", host, "error", err)
		return
	}

	now := time.Now().UTC()
	r.mu.Lock()
	r.cache[host] = Entry{Data: data, FetchedAt: &now}
	r.mu.Unlock()
}

func (r *Relay) fetch(ctx context.Context, host string) (json.RawMessage, error) {
	url := fmt.Sprintf("http://%s:%d%s", host, r.reporterPort, r.path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("upstream returned invalid JSON")
	}
	return body, nil
}

// snapshot copies the current cache.
func (r *Relay) snapshot() map[string]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Entry, len(r.cache))
	for k, v := range r.cache {
		out[k] = v
	}
	return out
}

// Handler serves the dashboard: / for the embedded page, /update for
// the cache as JSON.
func (r *Relay) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/update", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(r.snapshot()); err != nil {
			r.logger.Warn("encoding relay cache failed", "error", err)
		}
	})
	pages, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err) // embedded tree is fixed at build time
	}
	mux.Handle("/", http.FileServerFS(pages))
	return mux
}
