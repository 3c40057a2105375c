package types

// AllocateRequest is the body of POST /buffers.
type AllocateRequest struct {
	// Size in bytes of the new base buffer.
	// example: 4096
	Size int64 `json:"size" example:"4096"`
	// Optional byte value every position is filled with.
	// example: 0
	Fill byte `json:"fill,omitempty" example:"0"`
}

// BuffersResponse wraps the list returned by GET /buffers.
type BuffersResponse struct {
	// Registered base buffers in insertion order.
	Buffers []BufferStatus `json:"buffers"`
}

// SpillResponse is returned by POST /spill and POST /spill/limit.
type SpillResponse struct {
	// Buffer that was spilled by POST /spill, if any.
	Spilled *BufferStatus `json:"spilled,omitempty"`
	// Bytes moved to host memory.
	// example: 8192
	SpilledBytes int64 `json:"spilled_bytes" example:"8192"`
	// Device-resident bytes after the call.
	// example: 0
	UnspilledBytes int64 `json:"unspilled_bytes" example:"0"`
}

// ExposeResponse is returned by POST /buffers/{id}/expose.
type ExposeResponse struct {
	// Device address handed out; the buffer is unspillable from now on.
	// example: 0x7f0000000100
	Address string `json:"address" example:"0x7f0000000100"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: buffer 3: unspillable buffer
	Error string `json:"error" example:"buffer 3: unspillable buffer"`
	// HTTP status code.
	// example: 409
	Code int `json:"code" example:"409"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Whether the global spill manager is enabled.
	// example: true
	Enabled bool `json:"enabled" example:"true"`
	// example: true
	SpillOnDemand bool `json:"spill_on_demand" example:"true"`
	// Configured device memory limit in bytes, if any.
	// example: 1048576
	DeviceMemoryLimit *int64 `json:"device_memory_limit,omitempty" example:"1048576"`
	// Registered base buffers.
	// example: 3
	Buffers int `json:"buffers" example:"3"`
	// example: 2
	SpillableBuffers int `json:"spillable_buffers" example:"2"`
	// example: 1
	ExposedBuffers int `json:"exposed_buffers" example:"1"`
	// Bytes of registered buffers living in host memory.
	// example: 4096
	SpilledBytes int64 `json:"spilled_bytes" example:"4096"`
	// Bytes of registered buffers living on device.
	// example: 8192
	UnspilledBytes int64 `json:"unspilled_bytes" example:"8192"`
	// Device-to-host moves since start.
	// example: 5
	SpillsTotal uint64 `json:"spills_total" example:"5"`
	// Host-to-device moves since start.
	// example: 2
	UnspillsTotal uint64 `json:"unspills_total" example:"2"`
	// Spills chosen by LRU eviction.
	// example: 4
	EvictionsTotal uint64 `json:"evictions_total" example:"4"`
	// Allocations retried after spilling on demand.
	// example: 1
	AllocRetriesTotal uint64 `json:"alloc_retries_total" example:"1"`
	// Simulated device state.
	Device DeviceStatus `json:"device"`
	// Optional top-level error, e.g. when spilling is disabled.
	Error string `json:"error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// EventRecord is one spill manager event as returned by GET /events.
type EventRecord struct {
	// Event name: register, unregister, spill, unspill, expose, evict or alloc_retry.
	// example: spill
	Name string `json:"name" example:"spill"`
	// example: 7
	BufferID uint64 `json:"buffer_id,omitempty" example:"7"`
	// Bytes covered by the event.
	// example: 4096
	Size int64 `json:"size" example:"4096"`
	// example: 1700000000
	TimeUnix int64 `json:"time_unix" example:"1700000000"`
}

// EventsResponse wraps GET /events.
type EventsResponse struct {
	// Most recent events, oldest first.
	Events []EventRecord `json:"events"`
}
