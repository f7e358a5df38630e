// Package report serves the JSON job-status snapshot that the relay
// polls from each host: current GPU readings plus the busiest host
// processes.
package report

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/hostbox/hostbox/internal/gpu"
	"github.com/hostbox/hostbox/internal/metric"
	"github.com/shirou/gopsutil/v4/process"
)

// DefaultProcessLimit caps the reported process list.
const DefaultProcessLimit = 10

// ProcessInfo describes one running process.
type ProcessInfo struct {
	PID        int32    `json:"pid"`
	Name       string   `json:"name"`
	Username   string   `json:"username,omitempty"`
	Cmdline    []string `json:"cmdline,omitempty"`
	Cwd        string   `json:"cwd,omitempty"`
	CreateTime int64    `json:"create_time"`
	CPUPercent float64  `json:"cpu_percent"`
	RSS        uint64   `json:"rss"`
}

// Snapshot is the reporter response body.
type Snapshot struct {
	GeneratedAt time.Time              `json:"generated_at"`
	GPUs        map[string]gpu.Reading `json:"gpus"`
	Processes   []ProcessInfo          `json:"processes"`
}

// Reporter builds snapshots. The GPU session is shared with the gpu
// metric; each snapshot holds a scope reference for its duration.
type Reporter struct {
	backend      *gpu.Backend
	gpuSession   *metric.Session
	processLimit int
	logger       *slog.Logger
}

// New creates a reporter. backend and session may both be nil when GPU
// support is disabled; the snapshot then carries no gpus entry.
func New(backend *gpu.Backend, session *metric.Session, processLimit int, logger *slog.Logger) *Reporter {
	if processLimit <= 0 {
		processLimit = DefaultProcessLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		backend:      backend,
		gpuSession:   session,
		processLimit: processLimit,
		logger:       logger,
	}
}

// Snapshot gathers the current state.
func (r *Reporter) Snapshot() Snapshot {
	snap := Snapshot{GeneratedAt: time.Now().UTC()}

	if r.gpuSession != nil && r.backend != nil {
		if err := r.gpuSession.Enter(); err == nil {
			snap.GPUs = make(map[string]gpu.Reading)
			for _, reading := range r.backend.Readings() {
				snap.GPUs[reading.ID] = reading
			}
			r.gpuSession.Exit()
		}
	}

	snap.Processes = r.topProcesses()
	return snap
}

// topProcesses returns the busiest processes by CPU. Processes that
// vanish mid-walk are skipped; lookups race against process exit and
// a partial list is fine.
func (r *Reporter) topProcesses() []ProcessInfo {
	procs, err := process.Processes()
	if err != nil {
		r.logger.Warn("listing processes failed", "error", err)
		return nil
	}

	infos := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		info := ProcessInfo{PID: p.Pid, Name: name}
		info.CPUPercent, _ = p.CPUPercent()
		info.Username, _ = p.Username()
		info.Cmdline, _ = p.CmdlineSlice()
		info.Cwd, _ = p.Cwd()
		info.CreateTime, _ = p.CreateTime()
		if mem, err := p.MemoryInfo(); err == nil && mem != nil {
			info.RSS = mem.RSS
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CPUPercent != infos[j].CPUPercent {
			return infos[i].CPUPercent > infos[j].CPUPercent
		}
		return infos[i].PID < infos[j].PID
	})
	if len(infos) > r.processLimit {
		infos = infos[:r.processLimit]
	}
	return infos
}

// Handler serves the snapshot as JSON.
func (r *Reporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(r.Snapshot()); err != nil {
			r.logger.Warn("encoding snapshot failed", "error", err)
		}
	})
}
