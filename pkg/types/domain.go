package types

// BufferStatus describes one registered base buffer.
type BufferStatus struct {
	// Opaque buffer identifier.
	// example: 7
	ID uint64 `json:"id" example:"7"`
	// Size in bytes.
	// example: 1048576
	Size int64 `json:"size" example:"1048576"`
	// Stable logical device address, formatted as hex.
	// example: 0x7f0000000100
	Address string `json:"address" example:"0x7f0000000100"`
	// Current residency: device or host.
	// example: host
	Location string `json:"location" example:"host"`
	// Whether the buffer may currently be spilled.
	// example: true
	Spillable bool `json:"spillable" example:"true"`
	// Whether a raw device address has been handed out.
	// example: false
	Exposed bool `json:"exposed" example:"false"`
	// example: false
	ReadOnly bool `json:"read_only" example:"false"`
	// Ownership count; values above one block spilling.
	// example: 1
	Owners int `json:"owners" example:"1"`
	// Tracked handles (creator plus views) keeping the buffer alive.
	// example: 2
	Handles int `json:"handles" example:"2"`
	// Logical clock value of the last tracked access.
	// example: 42
	LastAccess uint64 `json:"last_access" example:"42"`
}

// DeviceStatus summarizes the simulated device.
type DeviceStatus struct {
	// Capacity in bytes; 0 means unlimited.
	// example: 1073741824
	CapacityBytes int64 `json:"capacity_bytes" example:"1073741824"`
	// Bytes with committed device storage.
	// example: 524288
	CommittedBytes int64 `json:"committed_bytes" example:"524288"`
	// Bytes of reserved address space.
	// example: 1048576
	ReservedBytes int64 `json:"reserved_bytes" example:"1048576"`
	// Commit failures for lack of capacity.
	// example: 0
	CommitFailures uint64 `json:"commit_failures" example:"0"`
}
