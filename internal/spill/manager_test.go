package spill

import (
	"testing"

	"spilld/internal/device"
)

func TestNewWithConfigDefaults(t *testing.T) {
	m := New()
	if m.SpillOnDemand() {
		t.Fatalf("spill on demand should default to off")
	}
	if _, ok := m.DeviceMemoryLimit(); ok {
		t.Fatalf("device memory limit should default to unset")
	}
	if m.Allocator() == nil || m.HostAllocator() == nil {
		t.Fatalf("allocators should be defaulted")
	}
	m = NewWithConfig(ManagerConfig{DeviceMemoryLimit: Limit(-5)})
	if l, ok := m.DeviceMemoryLimit(); !ok || l != 0 {
		t.Fatalf("negative limit should clamp to 0, got %d %t", l, ok)
	}
}

func TestBaseBuffersInsertionOrder(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{})
	a := allocFilled(t, m, 8)
	b := allocFilled(t, m, 8)
	c := allocFilled(t, m, 8)
	got := m.BaseBuffers()
	if len(got) != 3 || got[0] != a.Buffer() || got[1] != b.Buffer() || got[2] != c.Buffer() {
		t.Fatalf("unexpected order: %v", got)
	}
	_ = b.Close()
	got = m.BaseBuffers()
	if len(got) != 2 || got[0] != a.Buffer() || got[1] != c.Buffer() {
		t.Fatalf("unexpected order after close: %v", got)
	}
}

func TestLookupAddressRange(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{})
	h := allocFilled(t, m, 100)
	buffers := m.BaseBuffers()
	if len(buffers) != 1 || buffers[0] != h.Buffer() {
		t.Fatalf("expected a single base buffer")
	}
	buf := buffers[0]
	ptr, err := buf.Ptr()
	if err != nil {
		t.Fatalf("ptr: %v", err)
	}
	size := buf.Size()
	hits := []struct {
		addr device.Address
		size int64
	}{
		{ptr, size},
		{ptr + 1, size - 1},
		{ptr + 1, size + 1},
		{ptr - 1, size - 1},
		{ptr - 1, size + 1},
	}
	for _, c := range hits {
		if got := m.LookupAddressRange(c.addr, c.size); got != buf {
			t.Fatalf("lookup(%#x,%d) = %v", uint64(c.addr), c.size, got)
		}
	}
	if got := m.LookupAddressRange(ptr+device.Address(size), size); got != nil {
		t.Fatalf("adjacent range after should miss, got %v", got)
	}
	if got := m.LookupAddressRange(ptr-device.Address(size), size); got != nil {
		t.Fatalf("adjacent range before should miss, got %v", got)
	}
}

func TestLookupWorksWhileSpilled(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{})
	h := allocFilled(t, m, 64)
	b := h.Buffer()
	if err := b.MoveInplace(device.Host); err != nil {
		t.Fatalf("spill: %v", err)
	}
	if got := m.LookupAddressRange(b.Address()+10, 4); got != b {
		t.Fatalf("lookup of spilled buffer failed")
	}
	if !b.Spilled() {
		t.Fatalf("lookup must not unspill")
	}
	_ = h.Close()
	if got := m.LookupAddressRange(b.Address(), 64); got != nil {
		t.Fatalf("released buffer still indexed")
	}
}

func TestSpilledAndUnspilledSumsToRegistered(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{})
	sizes := []int64{10, 20, 30, 40}
	var handles []*Handle
	var total int64
	for _, s := range sizes {
		handles = append(handles, allocFilled(t, m, s))
		total += s
	}
	check := func() {
		t.Helper()
		var reg int64
		for _, b := range m.BaseBuffers() {
			reg += b.Size()
		}
		s, u := m.SpilledAndUnspilled()
		if s+u != reg {
			t.Fatalf("spilled %d + unspilled %d != registered %d", s, u, reg)
		}
	}
	check()
	m.SpillDeviceMemory()
	check()
	if _, err := handles[3].Buffer().Ptr(); err != nil {
		t.Fatalf("ptr: %v", err)
	}
	m.SpillToDeviceLimit(0)
	check()
	assertTotals(t, m, total-40, 40)
	_ = handles[0].Close()
	check()
}

func TestRegisterAdoptsUntrackedBuffer(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{})
	h, err := NewBuffer(device.NewSimulated(device.SimulatedConfig{BaseAddress: 0x1000}), device.NewHostPool(), 32)
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	m.Register(h.Buffer())
	m.Register(h.Buffer())
	if m.Len() != 1 {
		t.Fatalf("expected 1 registered buffer, got %d", m.Len())
	}
	other := New()
	other.Register(h.Buffer())
	if other.Len() != 0 {
		t.Fatalf("buffer registered with two managers")
	}
	_ = h.Close()
	if m.Len() != 0 {
		t.Fatalf("closing should unregister")
	}
}

func TestEventsArePublished(t *testing.T) {
	pub := NewMemoryPublisher()
	m, _ := newTestManager(t, ManagerConfig{Publisher: pub})
	h := allocFilled(t, m, 8)
	m.SpillDeviceMemory()
	if _, err := h.Buffer().Ptr(); err != nil {
		t.Fatalf("ptr: %v", err)
	}
	_ = h.Close()
	want := []string{EventRegister, EventSpill, EventEvict, EventUnspill, EventExpose, EventUnregister}
	got := pub.Names()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	st := m.Stats()
	if st.Spills != 1 || st.Unspills != 1 || st.Exposures != 1 || st.Evictions != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}
