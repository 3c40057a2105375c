package spill

import (
	"bytes"
	"testing"

	"spilld/internal/device"
)

// newTestManager returns a manager on a fresh simulated device.
func newTestManager(t *testing.T, cfg ManagerConfig) (*Manager, *device.Simulated) {
	t.Helper()
	dev, ok := cfg.Allocator.(*device.Simulated)
	if !ok || dev == nil {
		dev = device.NewSimulated(device.SimulatedConfig{})
		cfg.Allocator = dev
	}
	return NewWithConfig(cfg), dev
}

// allocFilled allocates a registered buffer whose bytes are 0,1,2,...
func allocFilled(t *testing.T, m *Manager, size int64) *Handle {
	t.Helper()
	h, err := m.Allocate(size)
	if err != nil {
		t.Fatalf("allocate %d: %v", size, err)
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	if err := h.Buffer().WriteRange(0, data); err != nil {
		t.Fatalf("fill: %v", err)
	}
	return h
}

func mustRead(t *testing.T, b *Buffer) []byte {
	t.Helper()
	out, err := b.ReadRange(0, b.Size())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return out
}

func assertBytes(t *testing.T, got, want []byte) {
	t.Helper()
	if !bytes.Equal(got, want) {
		t.Fatalf("content mismatch:\n got %v\nwant %v", got, want)
	}
}

func assertTotals(t *testing.T, m *Manager, spilled, unspilled int64) {
	t.Helper()
	s, u := m.SpilledAndUnspilled()
	if s != spilled || u != unspilled {
		t.Fatalf("spilled/unspilled = (%d,%d), want (%d,%d)", s, u, spilled, unspilled)
	}
}
