// Package spill relocates device-resident buffers to host memory under
// pressure and restores them on demand without changing their identity.
// It is structured into small files by concern:
//
//   - buffer.go: Buffer state (residency, ownership, access clock) and MoveInplace.
//   - handle.go: Handle, the tracked reference type, and scoped raw aliases.
//   - expose.go: Ptr and ArrayInterface, which hand device addresses out.
//   - serialize.go: HostSerialize/HostDeserialize.
//   - pack.go: optional LZ4/zstd compression of serialized frames.
//   - manager.go: Manager registry, address lookup, allocation and stats.
//   - config.go: ManagerConfig and package defaults.
//   - evict.go: LRU eviction (SpillDeviceMemory, SpillToDeviceLimit).
//   - events.go: lifecycle events published by the manager.
//   - errors.go: error types and Is* helpers.
//
// Nothing in this package is safe for concurrent use. Callers that share a
// Manager between goroutines must serialize every call that touches it or
// any of its buffers.
package spill
