// Package gpu provides NVIDIA telemetry as a session backend. Devices
// are enumerated from sysfs (/sys/class/drm/card*) with identity
// enrichment from /proc/driver/nvidia/ when the proprietary driver is
// loaded; dynamic readings come from the device's hwmon node. This is
// pure Go — NVML would require cgo or dlopen, so hosts where only NVML
// could provide data simply fail initialization and the gpu metric
// degrades to a warning line.
package gpu

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hostbox/hostbox/internal/metric"
)

// handle is one enumerated device. The set is discovered exactly once,
// on the first successful session enter, and cached for the session's
// lifetime; runtime topology changes are not supported.
type handle struct {
	// ID is the GPU UUID from the proprietary driver when available,
	// otherwise the DRM card name.
	ID string

	// Model is the marketing name, empty under nouveau.
	Model string

	devicePath string
}

// Reading is one device's current sensor values. Fields are pointers so
// sysfs attributes a driver does not expose are omitted rather than
// reported as zero.
type Reading struct {
	ID          string   `json:"id"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Power       *float64 `json:"power,omitempty"`
	LinkWidth   *float64 `json:"pcie_link_width,omitempty"`
}

// Backend implements metric.Backend over sysfs/procfs.
type Backend struct {
	sysRoot  string
	procRoot string
	handles  []handle
}

// NewBackend reads from the real /sys and /proc.
func NewBackend() *Backend {
	return &Backend{sysRoot: "/sys", procRoot: "/proc"}
}

// newBackendFrom uses custom filesystem roots for tests.
func newBackendFrom(sysRoot, procRoot string) *Backend {
	return &Backend{sysRoot: sysRoot, procRoot: procRoot}
}

// Initialize enumerates NVIDIA devices. It fails when none are present
// so the owning session memoizes unavailability.
func (b *Backend) Initialize() error {
	drmBase := filepath.Join(b.sysRoot, "class/drm")
	entries, err := os.ReadDir(drmBase)
	if err != nil {
		return fmt.Errorf("reading drm class: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !isCardDevice(name) {
			continue
		}
		devicePath := filepath.Join(drmBase, name, "device")
		driver := readDriverName(devicePath)
		if driver != "nvidia" && driver != "nouveau" {
			continue
		}

		h := handle{ID: name, devicePath: devicePath}
		if driver == "nvidia" {
			if slot := readPCISlot(devicePath); slot != "" {
				b.enrichFromProc(&h, slot)
			}
		}
		b.handles = append(b.handles, h)
	}

	if len(b.handles) == 0 {
		return fmt.Errorf("no nvidia devices found")
	}
	return nil
}

// Teardown drops the cached handles. The backend is not re-entered
// after this (session contract).
func (b *Backend) Teardown() {
	b.handles = nil
}

// Readings returns current sensor values for every cached device.
func (b *Backend) Readings() []Reading {
	readings := make([]Reading, 0, len(b.handles))
	for _, h := range b.handles {
		r := Reading{ID: h.ID, Model: h.Model}
		if v, ok := readHwmonValue(h.devicePath, "temp1_input"); ok {
			t := v / 1000 // millidegrees
			r.Temperature = &t
		}
		if v, ok := readHwmonValue(h.devicePath, "power1_average"); ok {
			w := v / 1e6 // microwatts
			r.Power = &w
		}
		if v, ok := readSysfsFloat(filepath.Join(h.devicePath, "current_link_width")); ok {
			r.LinkWidth = &v
		}
		readings = append(readings, r)
	}
	return readings
}

// Query flattens the readings into the gpu metric's value: a record
// keyed by device ID of records keyed by reading name.
func (b *Backend) Query() (metric.Value, error) {
	var rec metric.RecordBuilder
	for _, r := range b.Readings() {
		var dev metric.RecordBuilder
		if r.Temperature != nil {
			dev.SetScalar("temperature", *r.Temperature)
		}
		if r.Power != nil {
			dev.SetScalar("power", *r.Power)
		}
		if r.LinkWidth != nil {
			dev.SetScalar("pcie_link_width", *r.LinkWidth)
		}
		rec.Set(r.ID, dev.Value())
	}
	return rec.Value(), nil
}

// NewDescriptor returns the session-scoped gpu metric, its session, and
// the backend (shared with the snapshot reporter).
func NewDescriptor() (*metric.Descriptor, *metric.Session, *Backend) {
	backend := NewBackend()
	session := metric.NewSession("gpu", backend, nil)
	return &metric.Descriptor{
		Name:    "gpu",
		Help:    "gpu statistics",
		Type:    metric.TypeGauge,
		Axes:    []string{"id", "type"},
		Query:   backend.Query,
		Session: session,
	}, session, backend
}

// isCardDevice matches card0, card1, ... but not connector entries
// like card0-DP-1.
func isCardDevice(name string) bool {
	rest, ok := strings.CutPrefix(name, "card")
	if !ok || rest == "" {
		return false
	}
	_, err := strconv.Atoi(rest)
	return err == nil
}

// readDriverName resolves the device's driver symlink to its basename.
func readDriverName(devicePath string) string {
	target, err := os.Readlink(filepath.Join(devicePath, "driver"))
	if err != nil {
		return ""
	}
	return filepath.Base(target)
}

// readPCISlot extracts PCI_SLOT_NAME from the device uevent.
func readPCISlot(devicePath string) string {
	data, err := os.ReadFile(filepath.Join(devicePath, "uevent"))
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if v, ok := strings.CutPrefix(line, "PCI_SLOT_NAME="); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// enrichFromProc reads /proc/driver/nvidia/gpus/<slot>/information,
// which the proprietary driver provides as key-value lines:
//
//	Model:           NVIDIA GeForce RTX 4090
//	GPU UUID:        GPU-xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx
func (b *Backend) enrichFromProc(h *handle, slot string) {
	infoPath := filepath.Join(b.procRoot, "driver/nvidia/gpus", slot, "information")
	data, err := os.ReadFile(infoPath)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		switch key {
		case "Model":
			h.Model = value
		case "GPU UUID":
			h.ID = value
		}
	}
}

// readHwmonValue reads attr from the device's first hwmon node.
func readHwmonValue(devicePath, attr string) (float64, bool) {
	nodes, err := filepath.Glob(filepath.Join(devicePath, "hwmon/hwmon*"))
	if err != nil || len(nodes) == 0 {
		return 0, false
	}
	return readSysfsFloat(filepath.Join(nodes[0], attr))
}

func readSysfsFloat(path string) (float64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
