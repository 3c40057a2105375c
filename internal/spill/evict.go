package spill

import "spilld/internal/device"

// lruSpillable picks the resident spillable buffer with the oldest access.
// Ties go to the earliest registered buffer.
func (m *Manager) lruSpillable() *Buffer {
	var lru *Buffer
	for e := m.order.Front(); e != nil; e = e.Next() {
		b := e.Value.(*Buffer)
		if b.Spilled() || !b.Spillable() {
			continue
		}
		if lru == nil || b.lastAccess < lru.lastAccess {
			lru = b
		}
	}
	return lru
}

// SpillDeviceMemory spills the least recently used spillable buffer and
// returns it, or returns nil when nothing is spillable. It never fails.
func (m *Manager) SpillDeviceMemory() *Buffer {
	b := m.lruSpillable()
	if b == nil {
		return nil
	}
	if err := b.MoveInplace(device.Host); err != nil {
		// lruSpillable only returns spillable buffers
		m.log.Warn().Err(err).Uint64("buffer", b.id).Msg("eviction failed")
		return nil
	}
	m.evictions++
	m.publisher.Publish(Event{Name: EventEvict, BufferID: b.id, Size: b.size})
	return b
}

// SpillToDeviceLimit spills buffers in LRU order until the unspilled total is
// at most the limit. The limit is the first argument if given, else the
// configured device memory limit, else 0. It stops early once nothing is
// spillable and returns the number of bytes spilled.
func (m *Manager) SpillToDeviceLimit(limit ...int64) int64 {
	var target int64
	switch {
	case len(limit) > 0:
		target = limit[0]
	case m.deviceMemoryLimit != nil:
		target = *m.deviceMemoryLimit
	}
	_, unspilled := m.SpilledAndUnspilled()
	var freed int64
	for unspilled > target {
		b := m.SpillDeviceMemory()
		if b == nil {
			break
		}
		unspilled -= b.size
		freed += b.size
	}
	if freed > 0 {
		m.log.Debug().Int64("limit", target).Int64("spilled", freed).Int64("unspilled", unspilled).Msg("spilled to device limit")
	}
	return freed
}
