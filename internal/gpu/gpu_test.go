package gpu

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/hostbox/hostbox/internal/metric"
)

// writeSyntheticFile creates a file within root, creating parents.
func writeSyntheticFile(t *testing.T, root, path, content string) {
	t.Helper()
	full := filepath.Join(root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(full), err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", full, err)
	}
}

func writeSyntheticSymlink(t *testing.T, root, path, target string) {
	t.Helper()
	full := filepath.Join(root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(full), err)
	}
	if err := os.Symlink(target, full); err != nil {
		t.Fatalf("symlink %s -> %s: %v", full, target, err)
	}
}

// createSyntheticCard sets up one card with the given driver, a hwmon
// node with temperature and power, and a PCI slot.
func createSyntheticCard(t *testing.T, root string, index int, driver, pciSlot string) {
	t.Helper()
	cardPath := filepath.Join("sys/class/drm", "card"+strconv.Itoa(index))

	driverDir := filepath.Join(root, "sys/bus/pci/drivers", driver)
	if err := os.MkdirAll(driverDir, 0755); err != nil {
		t.Fatalf("mkdir driver: %v", err)
	}
	writeSyntheticSymlink(t, root, filepath.Join(cardPath, "device/driver"), driverDir)

	writeSyntheticFile(t, root, filepath.Join(cardPath, "device/uevent"),
		"DRIVER="+driver+"\nPCI_ID=10DE:2684\nPCI_SLOT_NAME="+pciSlot+"\n")
	writeSyntheticFile(t, root, filepath.Join(cardPath, "device/current_link_width"), "16\n")
	writeSyntheticFile(t, root, filepath.Join(cardPath, "device/hwmon/hwmon0/temp1_input"), "54000\n")
	writeSyntheticFile(t, root, filepath.Join(cardPath, "device/hwmon/hwmon0/power1_average"), "285000000\n")
}

func createSyntheticProcInfo(t *testing.T, root, pciSlot, uuid, model string) {
	t.Helper()
	content := "Model:           " + model + "\n" +
		"IRQ:             189\n" +
		"GPU UUID:        " + uuid + "\n" +
		"Bus Location:    " + pciSlot + "\n"
	writeSyntheticFile(t, root, filepath.Join("proc/driver/nvidia/gpus", pciSlot, "information"), content)
}

func newTestBackend(root string) *Backend {
	return newBackendFrom(filepath.Join(root, "sys"), filepath.Join(root, "proc"))
}

func TestInitializeProprietaryDriver(t *testing.T) {
	root := t.TempDir()
	createSyntheticCard(t, root, 0, "nvidia", "0000:01:00.0")
	createSyntheticProcInfo(t, root, "0000:01:00.0",
		"GPU-12345678-abcd-4242-8888-123456789abc", "NVIDIA GeForce RTX 4090")

	b := newTestBackend(root)
	if err := b.Initialize(); err != nil {
		t.Fatal(err)
	}
	if len(b.handles) != 1 {
		t.Fatalf("expected 1 handle, got %d", len(b.handles))
	}
	if b.handles[0].ID != "GPU-12345678-abcd-4242-8888-123456789abc" {
		t.Errorf("uuid not taken from proc info: %q", b.handles[0].ID)
	}
	if b.handles[0].Model != "NVIDIA GeForce RTX 4090" {
		t.Errorf("model not enriched: %q", b.handles[0].Model)
	}
}

func TestInitializeNouveauFallsBackToCardName(t *testing.T) {
	root := t.TempDir()
	createSyntheticCard(t, root, 0, "nouveau", "0000:05:00.0")

	b := newTestBackend(root)
	if err := b.Initialize(); err != nil {
		t.Fatal(err)
	}
	if b.handles[0].ID != "card0" {
		t.Errorf("expected card name fallback, got %q", b.handles[0].ID)
	}
}

func TestInitializeSkipsForeignDriversAndConnectors(t *testing.T) {
	root := t.TempDir()
	createSyntheticCard(t, root, 0, "amdgpu", "0000:03:00.0")
	// Connector entry must be ignored even under an nvidia driver.
	writeSyntheticFile(t, root, "sys/class/drm/card1-DP-1/device/uevent", "DRIVER=nvidia\n")

	b := newTestBackend(root)
	if err := b.Initialize(); err == nil {
		t.Error("expected initialization to fail with no nvidia devices")
	}
}

func TestInitializeFailsWithoutSysfs(t *testing.T) {
	b := newTestBackend(t.TempDir())
	if err := b.Initialize(); err == nil {
		t.Error("expected failure on missing drm class")
	}
}

func TestReadings(t *testing.T) {
	root := t.TempDir()
	createSyntheticCard(t, root, 0, "nvidia", "0000:01:00.0")

	b := newTestBackend(root)
	if err := b.Initialize(); err != nil {
		t.Fatal(err)
	}
	readings := b.Readings()
	if len(readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(readings))
	}
	r := readings[0]
	if r.Temperature == nil || *r.Temperature != 54 {
		t.Errorf("temperature: got %v, want 54", r.Temperature)
	}
	if r.Power == nil || *r.Power != 285 {
		t.Errorf("power: got %v, want 285", r.Power)
	}
	if r.LinkWidth == nil || *r.LinkWidth != 16 {
		t.Errorf("link width: got %v, want 16", r.LinkWidth)
	}
}

func TestQueryFlattens(t *testing.T) {
	root := t.TempDir()
	createSyntheticCard(t, root, 0, "nvidia", "0000:01:00.0")
	createSyntheticProcInfo(t, root, "0000:01:00.0", "GPU-aaaa", "RTX")

	b := newTestBackend(root)
	if err := b.Initialize(); err != nil {
		t.Fatal(err)
	}
	v, err := b.Query()
	if err != nil {
		t.Fatal(err)
	}
	samples, err := metric.Flatten(v, []string{"id", "type"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %v", samples)
	}
	for _, s := range samples {
		if s.Labels[0].Key != "id" || s.Labels[0].Value != "GPU-aaaa" {
			t.Errorf("unexpected id label: %v", s.Labels)
		}
	}
}

func TestIsCardDevice(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"card0", true},
		{"card12", true},
		{"card0-DP-1", false},
		{"card", false},
		{"renderD128", false},
	}
	for _, tt := range tests {
		if got := isCardDevice(tt.name); got != tt.want {
			t.Errorf("isCardDevice(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
