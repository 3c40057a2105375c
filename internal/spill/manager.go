package spill

import (
	"container/list"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"spilld/internal/addrindex"
	"spilld/internal/device"
)

// Manager tracks the live base buffers and spills them to host memory in
// least-recently-used order.
type Manager struct {
	alloc     device.Allocator
	hostAlloc device.HostAllocator

	spillOnDemand     bool
	deviceMemoryLimit *int64

	// registry in insertion order
	entries map[uint64]*list.Element
	order   *list.List
	index   *addrindex.Index[*Buffer]

	log       zerolog.Logger
	publisher EventPublisher

	spills       uint64
	unspills     uint64
	exposures    uint64
	evictions    uint64
	allocRetries uint64
	spilledTotal int64
	restoreTotal int64
}

func newManager() *Manager {
	return &Manager{
		entries: make(map[uint64]*list.Element),
		order:   list.New(),
		index:   addrindex.New[*Buffer](),
	}
}

// SpillOnDemand reports whether failed allocations trigger eviction.
func (m *Manager) SpillOnDemand() bool { return m.spillOnDemand }

// DeviceMemoryLimit returns the configured limit, if any.
func (m *Manager) DeviceMemoryLimit() (int64, bool) {
	if m.deviceMemoryLimit == nil {
		return 0, false
	}
	return *m.deviceMemoryLimit, true
}

// Allocator returns the device allocator buffers are created with.
func (m *Manager) Allocator() device.Allocator { return m.alloc }

// HostAllocator returns the host allocator used for spilled storage.
func (m *Manager) HostAllocator() device.HostAllocator { return m.hostAlloc }

// Allocate creates and registers a base buffer of size bytes.
func (m *Manager) Allocate(size int64) (*Handle, error) {
	if size < 0 {
		return nil, fmt.Errorf("negative buffer size %d", size)
	}
	addr := m.alloc.Reserve(size)
	dev, err := m.commit(m.alloc, addr, size)
	if err != nil {
		m.alloc.Unreserve(addr, size)
		return nil, err
	}
	b := newBuffer(m, m.alloc, m.hostAlloc, addr, size)
	b.dev = dev
	h := newHandle(b)
	m.Register(b)
	return h, nil
}

// HostDeserialize rebuilds a buffer in host memory from a copy of frames and
// registers it.
func (m *Manager) HostDeserialize(h Header, frames [][]byte) (*Handle, error) {
	host, err := joinFrames(m.hostAlloc, h, frames)
	if err != nil {
		return nil, err
	}
	b := newBuffer(m, m.alloc, m.hostAlloc, m.alloc.Reserve(h.Size), h.Size)
	b.setHost(host, h.ReadOnly)
	handle := newHandle(b)
	m.Register(b)
	return handle, nil
}

// ImportExternal wraps device memory owned outside the tracked allocator. The
// buffer is not registered and never spills.
func (m *Manager) ImportExternal(addr device.Address, data []byte) *Handle {
	h := WrapExternal(addr, data)
	m.log.Debug().Uint64("buffer", h.buf.id).Int("size", len(data)).Msg("imported external memory")
	return h
}

// commit backs a reserved range with device storage. With spill-on-demand a
// failed commit evicts one buffer and retries until eviction has no effect.
func (m *Manager) commit(alloc device.Allocator, addr device.Address, size int64) ([]byte, error) {
	for {
		dev, err := alloc.Commit(addr, size)
		if err == nil {
			return dev, nil
		}
		if !m.spillOnDemand || !errors.Is(err, device.ErrOutOfMemory) {
			return nil, errAllocation(size, err)
		}
		m.allocRetries++
		m.publisher.Publish(Event{Name: EventAllocRetry, Size: size})
		if m.SpillDeviceMemory() == nil {
			m.log.Debug().Int64("size", size).Msg("allocation failed, nothing left to spill")
			return nil, errAllocation(size, err)
		}
	}
}

// Register adds a base buffer to the registry. Buffers owned by another
// manager, external buffers and already registered buffers are ignored. When
// a device memory limit is configured it is enforced immediately.
func (m *Manager) Register(b *Buffer) {
	if b == nil || b.released || !b.base || b.external {
		return
	}
	if b.mgr != nil && b.mgr != m {
		return
	}
	if _, ok := m.entries[b.id]; ok {
		return
	}
	b.mgr = m
	if err := m.index.Insert(uint64(b.addr), uint64(b.size), b); err != nil {
		m.log.Warn().Err(err).Uint64("buffer", b.id).Msg("address range not indexed")
	}
	m.entries[b.id] = m.order.PushBack(b)
	m.log.Debug().Uint64("buffer", b.id).Int64("size", b.size).Str("location", b.location.String()).Msg("register")
	m.publisher.Publish(Event{Name: EventRegister, BufferID: b.id, Size: b.size})
	if m.deviceMemoryLimit != nil {
		m.SpillToDeviceLimit()
	}
}

// Unregister removes b from the registry. It is a no-op for unknown buffers.
func (m *Manager) Unregister(b *Buffer) {
	e, ok := m.entries[b.id]
	if !ok {
		return
	}
	m.order.Remove(e)
	delete(m.entries, b.id)
	if existing, found := m.index.Lookup(uint64(b.addr), 1); found && existing == b {
		m.index.Delete(uint64(b.addr))
	}
	b.mgr = nil
	m.log.Debug().Uint64("buffer", b.id).Msg("unregister")
	m.publisher.Publish(Event{Name: EventUnregister, BufferID: b.id, Size: b.size})
}

// BaseBuffers returns the registered buffers in insertion order.
func (m *Manager) BaseBuffers() []*Buffer {
	out := make([]*Buffer, 0, m.order.Len())
	for e := m.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Buffer))
	}
	return out
}

// Len reports the number of registered buffers.
func (m *Manager) Len() int { return m.order.Len() }

// LookupAddressRange returns the registered buffer whose address range
// intersects [addr, addr+size), or nil.
func (m *Manager) LookupAddressRange(addr device.Address, size int64) *Buffer {
	if size <= 0 {
		return nil
	}
	b, ok := m.index.Lookup(uint64(addr), uint64(size))
	if !ok {
		return nil
	}
	return b
}

// SpilledAndUnspilled returns the total size of spilled and unspilled
// registered buffers.
func (m *Manager) SpilledAndUnspilled() (spilled, unspilled int64) {
	for e := m.order.Front(); e != nil; e = e.Next() {
		b := e.Value.(*Buffer)
		if b.Spilled() {
			spilled += b.size
		} else {
			unspilled += b.size
		}
	}
	return spilled, unspilled
}

// Spillable reports whether b may be spilled.
func (m *Manager) Spillable(b *Buffer) bool { return b.Spillable() }

func (m *Manager) noteMove(b *Buffer, name string) {
	switch name {
	case EventSpill:
		m.spills++
		m.spilledTotal += b.size
	case EventUnspill:
		m.unspills++
		m.restoreTotal += b.size
	}
	m.log.Debug().Uint64("buffer", b.id).Int64("size", b.size).Msg(name)
	m.publisher.Publish(Event{Name: name, BufferID: b.id, Size: b.size})
}

func (m *Manager) noteExpose(b *Buffer) {
	m.exposures++
	m.log.Debug().Uint64("buffer", b.id).Uint64("addr", uint64(b.addr)).Msg("pointer exposed")
	m.publisher.Publish(Event{Name: EventExpose, BufferID: b.id, Size: b.size})
}

// Stats is a point-in-time summary of the manager.
type Stats struct {
	Buffers             int
	SpilledBytes        int64
	UnspilledBytes      int64
	SpillableBuffers    int
	ExposedBuffers      int
	Spills              uint64
	Unspills            uint64
	Exposures           uint64
	Evictions           uint64
	AllocRetries        uint64
	SpilledBytesTotal   int64
	UnspilledBytesTotal int64
	SpillOnDemand       bool
	DeviceMemoryLimit   *int64
}

// Stats returns current counters and totals.
func (m *Manager) Stats() Stats {
	s := Stats{
		Buffers:             m.order.Len(),
		Spills:              m.spills,
		Unspills:            m.unspills,
		Exposures:           m.exposures,
		Evictions:           m.evictions,
		AllocRetries:        m.allocRetries,
		SpilledBytesTotal:   m.spilledTotal,
		UnspilledBytesTotal: m.restoreTotal,
		SpillOnDemand:       m.spillOnDemand,
	}
	if m.deviceMemoryLimit != nil {
		s.DeviceMemoryLimit = Limit(*m.deviceMemoryLimit)
	}
	for e := m.order.Front(); e != nil; e = e.Next() {
		b := e.Value.(*Buffer)
		if b.Spilled() {
			s.SpilledBytes += b.size
		} else {
			s.UnspilledBytes += b.size
		}
		if b.Spillable() {
			s.SpillableBuffers++
		}
		if b.exposed {
			s.ExposedBuffers++
		}
	}
	return s
}
