package spill

import (
	"fmt"
	"sync/atomic"

	"spilld/internal/device"
)

// accessClock is the logical clock behind Buffer.LastAccess.
var accessClock atomic.Uint64

func tick() uint64 { return accessClock.Add(1) }

var bufferIDs atomic.Uint64

// Buffer is a device allocation that may be relocated to host memory and back.
// Every holder of a Buffer observes its current residency: moves happen in
// place and never change the Buffer's identity or its logical address.
type Buffer struct {
	id       uint64
	size     int64
	addr     device.Address
	location device.Location

	dev        []byte // valid when location == Device
	host       []byte // valid when location == Host
	hostShared bool   // host bytes were handed out, never return them to the pool

	exposed  bool
	readOnly bool
	base     bool
	external bool
	released bool

	owners  int // 1 + outstanding raw aliases
	handles int // live tracked handles

	lastAccess uint64

	alloc     device.Allocator
	hostAlloc device.HostAllocator
	mgr       *Manager
}

func newBuffer(mgr *Manager, alloc device.Allocator, hostAlloc device.HostAllocator, addr device.Address, size int64) *Buffer {
	return &Buffer{
		id:         bufferIDs.Add(1),
		size:       size,
		addr:       addr,
		location:   device.Device,
		base:       true,
		owners:     1,
		lastAccess: tick(),
		alloc:      alloc,
		hostAlloc:  hostAlloc,
		mgr:        mgr,
	}
}

// NewBuffer allocates a base buffer of size bytes that is not tracked by any
// Manager. It can still be moved between device and host directly.
func NewBuffer(alloc device.Allocator, hostAlloc device.HostAllocator, size int64) (*Handle, error) {
	if size < 0 {
		return nil, fmt.Errorf("negative buffer size %d", size)
	}
	addr := alloc.Reserve(size)
	dev, err := alloc.Commit(addr, size)
	if err != nil {
		alloc.Unreserve(addr, size)
		return nil, errAllocation(size, err)
	}
	b := newBuffer(nil, alloc, hostAlloc, addr, size)
	b.dev = dev
	return newHandle(b), nil
}

// WrapExternal wraps device memory owned outside the tracked allocator. The
// result is never registered and never spillable; closing it does not free data.
func WrapExternal(addr device.Address, data []byte) *Handle {
	b := &Buffer{
		id:         bufferIDs.Add(1),
		size:       int64(len(data)),
		addr:       addr,
		location:   device.Device,
		dev:        data,
		external:   true,
		owners:     1,
		lastAccess: tick(),
	}
	return newHandle(b)
}

func (b *Buffer) ID() uint64                { return b.id }
func (b *Buffer) Size() int64               { return b.size }
func (b *Buffer) Location() device.Location { return b.location }
func (b *Buffer) Spilled() bool             { return b.location == device.Host }
func (b *Buffer) Exposed() bool             { return b.exposed }
func (b *Buffer) ReadOnly() bool            { return b.readOnly }
func (b *Buffer) IsBase() bool              { return b.base }
func (b *Buffer) External() bool            { return b.external }
func (b *Buffer) Released() bool            { return b.released }
func (b *Buffer) OwnershipCount() int       { return b.owners }
func (b *Buffer) LastAccess() uint64        { return b.lastAccess }

// Address is the stable logical address of b, valid even while spilled. It is
// meant for keying and range lookups; use Ptr to obtain a dereferenceable
// address.
func (b *Buffer) Address() device.Address { return b.addr }

// Spillable reports whether b may be moved to host memory.
func (b *Buffer) Spillable() bool {
	return !b.released && b.base && b.owners == 1 && !b.exposed && !b.external
}

// MarkReadOnly flags b as read-only. The flag is advisory and cannot be cleared.
func (b *Buffer) MarkReadOnly() { b.readOnly = true }

// RecordAccess bumps the last-access timestamp used for LRU eviction.
func (b *Buffer) RecordAccess() { b.lastAccess = tick() }

func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(id=%d size=%d addr=%#x location=%s exposed=%t owners=%d)",
		b.id, b.size, uint64(b.addr), b.location, b.exposed, b.owners)
}

// MoveInplace transfers b to target. Moving to host requires b to be
// spillable; moving to device is always allowed. On error b is unchanged.
func (b *Buffer) MoveInplace(target device.Location) error {
	if b.released {
		return errInvalidOperation(b.id, "buffer released")
	}
	if b.location == target {
		return nil
	}
	switch target {
	case device.Host:
		return b.spill()
	case device.Device:
		return b.unspill()
	}
	return fmt.Errorf("unknown target location %v", target)
}

func (b *Buffer) spill() error {
	if !b.Spillable() {
		return errInvalidOperation(b.id, "cannot spill an unspillable buffer")
	}
	host := b.hostAlloc.Alloc(b.size)
	copy(host, b.dev)
	b.alloc.Decommit(b.addr, b.size)
	b.dev = nil
	b.host = host
	b.hostShared = false
	b.location = device.Host
	if b.mgr != nil {
		b.mgr.noteMove(b, EventSpill)
	}
	return nil
}

func (b *Buffer) unspill() error {
	dev, err := b.commit()
	if err != nil {
		return err
	}
	copy(dev, b.host)
	b.releaseHost()
	b.dev = dev
	b.location = device.Device
	if b.mgr != nil {
		b.mgr.noteMove(b, EventUnspill)
	}
	return nil
}

func (b *Buffer) commit() ([]byte, error) {
	if b.mgr != nil {
		return b.mgr.commit(b.alloc, b.addr, b.size)
	}
	dev, err := b.alloc.Commit(b.addr, b.size)
	if err != nil {
		return nil, errAllocation(b.size, err)
	}
	return dev, nil
}

func (b *Buffer) releaseHost() {
	if b.host != nil && !b.hostShared && b.hostAlloc != nil {
		b.hostAlloc.Free(b.host)
	}
	b.host = nil
	b.hostShared = false
}

// detachHost gives b a private copy of its host bytes so frames handed out by
// HostSerialize keep the serialized content.
func (b *Buffer) detachHost() {
	host := b.hostAlloc.Alloc(b.size)
	copy(host, b.host)
	b.host = host
	b.hostShared = false
}

func (b *Buffer) resident() []byte {
	if b.location == device.Host {
		return b.host
	}
	return b.dev
}

func (b *Buffer) checkRange(off, n int64) error {
	if b.released {
		return errInvalidOperation(b.id, "buffer released")
	}
	if off < 0 || n < 0 || off+n > b.size {
		return fmt.Errorf("buffer %d: range [%d,%d) out of bounds (size %d)", b.id, off, off+n, b.size)
	}
	return nil
}

// DeviceBytes unspills b if needed, records an access and returns its device
// storage without exposing it. The slice is only valid until b is spilled.
func (b *Buffer) DeviceBytes() ([]byte, error) {
	if b.released {
		return nil, errInvalidOperation(b.id, "buffer released")
	}
	if b.location == device.Host {
		if err := b.unspill(); err != nil {
			return nil, err
		}
	}
	b.RecordAccess()
	return b.dev, nil
}

// ReadRange copies n bytes at off from wherever b currently lives. It never
// changes residency.
func (b *Buffer) ReadRange(off, n int64) ([]byte, error) {
	if err := b.checkRange(off, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b.resident()[off:off+n])
	b.RecordAccess()
	return out, nil
}

// WriteRange writes p at off into wherever b currently lives. It never
// changes residency. Host bytes previously handed out by HostSerialize are
// copied first, so serialized frames do not observe the write. Writes to a
// read-only buffer are allowed and logged at debug level.
func (b *Buffer) WriteRange(off int64, p []byte) error {
	if err := b.checkRange(off, int64(len(p))); err != nil {
		return err
	}
	if b.readOnly && b.mgr != nil {
		b.mgr.log.Debug().Uint64("buffer", b.id).Int64("offset", off).Int("size", len(p)).Msg("write to read-only buffer")
	}
	if b.location == device.Host && b.hostShared {
		b.detachHost()
	}
	copy(b.resident()[off:], p)
	b.RecordAccess()
	return nil
}
