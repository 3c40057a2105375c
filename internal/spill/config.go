package spill

import (
	"github.com/rs/zerolog"

	"spilld/internal/device"
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// SpillOnDemand makes allocations that fail for lack of device memory
	// evict the least recently used spillable buffer and retry.
	SpillOnDemand bool
	// DeviceMemoryLimit, when set, is enforced every time a base buffer is
	// registered and is the default target of SpillToDeviceLimit.
	DeviceMemoryLimit *int64
	// Allocator defaults to an unlimited simulated device.
	Allocator device.Allocator
	// HostAllocator defaults to a pooled host allocator.
	HostAllocator device.HostAllocator
	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger
	// Publisher defaults to dropping events.
	Publisher EventPublisher
}

// Limit is a convenience for filling ManagerConfig.DeviceMemoryLimit.
func Limit(n int64) *int64 { return &n }

// New constructs a Manager with package defaults.
func New() *Manager { return NewWithConfig(ManagerConfig{}) }

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := newManager()
	m.spillOnDemand = cfg.SpillOnDemand
	if cfg.DeviceMemoryLimit != nil {
		limit := *cfg.DeviceMemoryLimit
		if limit < 0 {
			limit = 0
		}
		m.deviceMemoryLimit = &limit
	}
	// Apply defaults if unset
	if cfg.Allocator != nil {
		m.alloc = cfg.Allocator
	} else {
		m.alloc = device.NewSimulated(device.SimulatedConfig{})
	}
	if cfg.HostAllocator != nil {
		m.hostAlloc = cfg.HostAllocator
	} else {
		m.hostAlloc = device.NewHostPool()
	}
	if cfg.Logger != nil {
		m.log = *cfg.Logger
	} else {
		m.log = zerolog.Nop()
	}
	if cfg.Publisher != nil {
		m.publisher = cfg.Publisher
	} else {
		m.publisher = noopPublisher{}
	}
	return m
}
