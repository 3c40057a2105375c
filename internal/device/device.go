// Package device defines the memory collaborators the spill manager relies on:
// a device allocator that hands out stable logical addresses, and a host
// allocator used for spilled storage. Simulated and HostPool are in-process
// stand-ins suitable for tests and for the spilld daemon.
package device

import (
	"errors"
	"fmt"
	"strings"
)

// Location is where a buffer's bytes currently live.
type Location int

const (
	Device Location = iota
	Host
)

func (l Location) String() string {
	switch l {
	case Device:
		return "device"
	case Host:
		return "host"
	default:
		return fmt.Sprintf("location(%d)", int(l))
	}
}

// ParseLocation accepts "device"/"gpu" and "host"/"cpu".
func ParseLocation(s string) (Location, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "device", "gpu":
		return Device, nil
	case "host", "cpu":
		return Host, nil
	}
	return 0, fmt.Errorf("unknown location %q", s)
}

// Address is a logical device address. An address reserved for a buffer stays
// valid for the buffer's whole lifetime, including while it is spilled.
type Address uint64

// ErrOutOfMemory is returned by Commit when device capacity is exhausted.
var ErrOutOfMemory = errors.New("device: out of memory")

// Allocator manages device address space and device storage separately so a
// buffer can drop its storage (spill) and re-acquire it (unspill) at the same
// address.
type Allocator interface {
	// Reserve claims a fresh address range of size bytes. Ranges are never
	// handed out twice while reserved.
	Reserve(size int64) Address
	// Commit backs a reserved range with device storage.
	Commit(addr Address, size int64) ([]byte, error)
	// Decommit releases the device storage of a range but keeps the reservation.
	Decommit(addr Address, size int64)
	// Unreserve releases the range, decommitting it first if needed.
	Unreserve(addr Address, size int64)
}

// HostAllocator provides host storage for spilled buffers.
type HostAllocator interface {
	Alloc(size int64) []byte
	Free(b []byte)
}
