package httpapi

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"spilld/internal/device"
	"spilld/internal/lifecycle"
	"spilld/internal/spill"
	"spilld/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Status() types.StatusResponse
	Buffers() ([]types.BufferStatus, error)
	Lookup(addr device.Address, size int64) (*types.BufferStatus, error)
	Allocate(req types.AllocateRequest) (types.BufferStatus, error)
	Release(id uint64) error
	Move(id uint64, target device.Location) (types.BufferStatus, error)
	Expose(id uint64) (types.ExposeResponse, error)
	SpillOne() (types.SpillResponse, error)
	SpillToLimit(limit *int64) (types.SpillResponse, error)
	Events(limit int) []types.EventRecord
	Ready() bool
}

// ManagerService serves the API from the manager owned by a lifecycle.Global.
// The spill package is single-threaded, so every call holds mu.
type ManagerService struct {
	mu      sync.Mutex
	global  *lifecycle.Global
	dev     *device.Simulated
	handles map[uint64]*spill.Handle
	events  *EventLog
	maxSize int64
	started time.Time
}

// DefaultMaxAllocation bounds a single POST /buffers request when no limit is
// configured.
const DefaultMaxAllocation int64 = 1 << 30

// NewManagerService wraps g. dev is reported in Status when non-nil.
func NewManagerService(g *lifecycle.Global, dev *device.Simulated) *ManagerService {
	return &ManagerService{
		global:  g,
		dev:     dev,
		handles: make(map[uint64]*spill.Handle),
		maxSize: DefaultMaxAllocation,
		started: time.Now(),
	}
}

// WithMaxAllocation caps the size of a single allocation. n <= 0 restores
// DefaultMaxAllocation.
func (s *ManagerService) WithMaxAllocation(n int64) *ManagerService {
	if n <= 0 {
		n = DefaultMaxAllocation
	}
	s.maxSize = n
	return s
}

// WithEvents serves GET /events from log. The log must also be installed as
// (part of) the manager's publisher to receive anything.
func (s *ManagerService) WithEvents(log *EventLog) *ManagerService {
	s.events = log
	return s
}

func (s *ManagerService) Events(limit int) []types.EventRecord {
	if s.events == nil {
		return nil
	}
	return s.events.Recent(limit)
}

func (s *ManagerService) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.global.Enabled()
}

func (s *ManagerService) Status() types.StatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	st := types.StatusResponse{
		UptimeSeconds:  int64(now.Sub(s.started).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
	if s.dev != nil {
		ds := s.dev.Stats()
		st.Device = types.DeviceStatus{
			CapacityBytes:  ds.CapacityBytes,
			CommittedBytes: ds.CommittedBytes,
			ReservedBytes:  ds.ReservedBytes,
			CommitFailures: ds.Failures,
		}
	}
	m, err := s.global.Get()
	if err != nil {
		st.Error = err.Error()
		return st
	}
	ms := m.Stats()
	st.Enabled = true
	st.SpillOnDemand = ms.SpillOnDemand
	st.DeviceMemoryLimit = ms.DeviceMemoryLimit
	st.Buffers = ms.Buffers
	st.SpillableBuffers = ms.SpillableBuffers
	st.ExposedBuffers = ms.ExposedBuffers
	st.SpilledBytes = ms.SpilledBytes
	st.UnspilledBytes = ms.UnspilledBytes
	st.SpillsTotal = ms.Spills
	st.UnspillsTotal = ms.Unspills
	st.EvictionsTotal = ms.Evictions
	st.AllocRetriesTotal = ms.AllocRetries
	return st
}

func (s *ManagerService) Buffers() ([]types.BufferStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.global.Get()
	if err != nil {
		return nil, err
	}
	bufs := m.BaseBuffers()
	out := make([]types.BufferStatus, 0, len(bufs))
	for _, b := range bufs {
		out = append(out, bufferStatus(b))
	}
	return out, nil
}

func (s *ManagerService) Lookup(addr device.Address, size int64) (*types.BufferStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.global.Get()
	if err != nil {
		return nil, err
	}
	b := m.LookupAddressRange(addr, size)
	if b == nil {
		return nil, nil
	}
	bs := bufferStatus(b)
	return &bs, nil
}

func (s *ManagerService) Allocate(req types.AllocateRequest) (types.BufferStatus, error) {
	if req.Size < 0 {
		return types.BufferStatus{}, badRequestError{msg: "size must be non-negative"}
	}
	if req.Size > s.maxSize {
		return types.BufferStatus{}, tooLargeError{size: req.Size, limit: s.maxSize, what: "max allocation"}
	}
	if c := s.dev.Stats().CapacityBytes; c > 0 && req.Size > c {
		return types.BufferStatus{}, tooLargeError{size: req.Size, limit: c, what: "device capacity"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.global.Get()
	if err != nil {
		return types.BufferStatus{}, err
	}
	h, err := m.Allocate(req.Size)
	if err != nil {
		return types.BufferStatus{}, err
	}
	if req.Fill != 0 {
		if err := h.Buffer().WriteRange(0, bytes.Repeat([]byte{req.Fill}, int(req.Size))); err != nil {
			_ = h.Close()
			return types.BufferStatus{}, err
		}
	}
	s.handles[h.Buffer().ID()] = h
	return bufferStatus(h.Buffer()), nil
}

func (s *ManagerService) Release(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[id]
	if !ok {
		return ErrNotFound(id)
	}
	delete(s.handles, id)
	return h.Close()
}

func (s *ManagerService) Move(id uint64, target device.Location) (types.BufferStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[id]
	if !ok {
		return types.BufferStatus{}, ErrNotFound(id)
	}
	if err := h.Buffer().MoveInplace(target); err != nil {
		return types.BufferStatus{}, err
	}
	return bufferStatus(h.Buffer()), nil
}

func (s *ManagerService) Expose(id uint64) (types.ExposeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[id]
	if !ok {
		return types.ExposeResponse{}, ErrNotFound(id)
	}
	addr, err := h.Buffer().Ptr()
	if err != nil {
		return types.ExposeResponse{}, err
	}
	return types.ExposeResponse{Address: formatAddress(addr)}, nil
}

func (s *ManagerService) SpillOne() (types.SpillResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.global.Get()
	if err != nil {
		return types.SpillResponse{}, err
	}
	var resp types.SpillResponse
	if b := m.SpillDeviceMemory(); b != nil {
		bs := bufferStatus(b)
		resp.Spilled = &bs
		resp.SpilledBytes = b.Size()
	}
	_, resp.UnspilledBytes = m.SpilledAndUnspilled()
	return resp, nil
}

func (s *ManagerService) SpillToLimit(limit *int64) (types.SpillResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.global.Get()
	if err != nil {
		return types.SpillResponse{}, err
	}
	var resp types.SpillResponse
	if limit != nil {
		resp.SpilledBytes = m.SpillToDeviceLimit(*limit)
	} else {
		resp.SpilledBytes = m.SpillToDeviceLimit()
	}
	_, resp.UnspilledBytes = m.SpilledAndUnspilled()
	return resp, nil
}

// Close releases every handle the service still holds.
func (s *ManagerService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, h := range s.handles {
		_ = h.Close()
		delete(s.handles, id)
	}
	return nil
}

func bufferStatus(b *spill.Buffer) types.BufferStatus {
	return types.BufferStatus{
		ID:         b.ID(),
		Size:       b.Size(),
		Address:    formatAddress(b.Address()),
		Location:   b.Location().String(),
		Spillable:  b.Spillable(),
		Exposed:    b.Exposed(),
		ReadOnly:   b.ReadOnly(),
		Owners:     b.OwnershipCount(),
		Handles:    b.Handles(),
		LastAccess: b.LastAccess(),
	}
}

func formatAddress(a device.Address) string { return fmt.Sprintf("%#x", uint64(a)) }
