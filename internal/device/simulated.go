package device

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

const (
	defaultBaseAddress Address = 0x7f0000000000
	defaultAlignment   int64   = 256
)

// SimulatedConfig holds the tunables of a Simulated device.
type SimulatedConfig struct {
	// CapacityBytes bounds committed device storage. 0 means unlimited.
	CapacityBytes int64
	// BaseAddress is the first address handed out. Defaults to 0x7f0000000000.
	BaseAddress Address
	// Alignment of reserved ranges in bytes. Defaults to 256.
	Alignment int64
}

// SimulatedStats is a point-in-time view of a Simulated device.
type SimulatedStats struct {
	CapacityBytes  int64
	CommittedBytes int64
	ReservedBytes  int64
	Commits        uint64
	Failures       uint64
}

// Simulated is an in-process device: storage is ordinary Go memory, capacity
// is enforced with a weighted semaphore and addresses come from a bump pointer
// that never reuses a range.
type Simulated struct {
	mu    sync.Mutex
	next  Address
	align int64
	live  map[Address][]byte

	capacity int64
	capSem   *semaphore.Weighted // nil if unlimited

	committed atomic.Int64
	reserved  atomic.Int64
	commits   atomic.Uint64
	failures  atomic.Uint64
}

// NewSimulated creates a simulated device.
func NewSimulated(cfg SimulatedConfig) *Simulated {
	if cfg.BaseAddress == 0 {
		cfg.BaseAddress = defaultBaseAddress
	}
	if cfg.Alignment <= 0 {
		cfg.Alignment = defaultAlignment
	}
	s := &Simulated{
		next:     cfg.BaseAddress,
		align:    cfg.Alignment,
		live:     make(map[Address][]byte),
		capacity: cfg.CapacityBytes,
	}
	if cfg.CapacityBytes > 0 {
		s.capSem = semaphore.NewWeighted(cfg.CapacityBytes)
	}
	return s
}

func (s *Simulated) Reserve(size int64) Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr := s.next
	span := size
	if span < s.align {
		span = s.align
	}
	if rem := span % s.align; rem != 0 {
		span += s.align - rem
	}
	s.next += Address(span)
	s.reserved.Add(size)
	return addr
}

func (s *Simulated) Commit(addr Address, size int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[addr]; ok {
		return nil, fmt.Errorf("device: range %#x already committed", uint64(addr))
	}
	if size > 0 && s.capSem != nil && !s.capSem.TryAcquire(size) {
		s.failures.Add(1)
		return nil, fmt.Errorf("commit %d bytes at %#x: %w", size, uint64(addr), ErrOutOfMemory)
	}
	mem := make([]byte, size)
	s.live[addr] = mem
	s.committed.Add(size)
	s.commits.Add(1)
	return mem, nil
}

func (s *Simulated) Decommit(addr Address, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decommitLocked(addr, size)
}

func (s *Simulated) decommitLocked(addr Address, size int64) {
	if _, ok := s.live[addr]; !ok {
		return
	}
	delete(s.live, addr)
	if size > 0 && s.capSem != nil {
		s.capSem.Release(size)
	}
	s.committed.Add(-size)
}

func (s *Simulated) Unreserve(addr Address, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decommitLocked(addr, size)
	s.reserved.Add(-size)
}

// Stats returns current usage.
func (s *Simulated) Stats() SimulatedStats {
	if s == nil {
		return SimulatedStats{}
	}
	return SimulatedStats{
		CapacityBytes:  s.capacity,
		CommittedBytes: s.committed.Load(),
		ReservedBytes:  s.reserved.Load(),
		Commits:        s.commits.Load(),
		Failures:       s.failures.Load(),
	}
}
