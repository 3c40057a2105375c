package spill

import "spilld/internal/device"

// Handle is a tracked reference to a Buffer. Views of the same data share the
// Buffer through Share; the Buffer is freed and unregistered when its last
// handle is closed and no raw alias is outstanding.
//
// Handles do not block spilling. Anything that keeps raw access to the device
// storage must hold an alias from Buffer.Acquire instead.
type Handle struct {
	buf    *Buffer
	closed bool
}

func newHandle(b *Buffer) *Handle {
	b.handles++
	return &Handle{buf: b}
}

// Buffer returns the referenced buffer.
func (h *Handle) Buffer() *Buffer { return h.buf }

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool { return h.closed }

// Share returns a new handle to the same buffer. It panics on a closed handle.
func (h *Handle) Share() *Handle {
	if h.closed {
		panic("spill: Share on closed handle")
	}
	return newHandle(h.buf)
}

// Close drops the reference. It is idempotent.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.buf.handles--
	h.buf.maybeRelease()
	return nil
}

// Handles reports the number of live tracked handles.
func (b *Buffer) Handles() int { return b.handles }

// Acquire registers a raw alias of b's device storage, which raises the
// ownership count and makes b unspillable until release is called. release
// is idempotent.
func (b *Buffer) Acquire() (release func()) {
	b.owners++
	done := false
	return func() {
		if done {
			return
		}
		done = true
		b.owners--
		b.maybeRelease()
	}
}

func (b *Buffer) maybeRelease() {
	if b.released || b.handles > 0 || b.owners > 1 {
		return
	}
	b.destroy()
}

func (b *Buffer) destroy() {
	if b.mgr != nil {
		b.mgr.Unregister(b)
	}
	b.released = true
	if b.external {
		b.dev = nil
		return
	}
	if b.location == device.Device {
		b.alloc.Decommit(b.addr, b.size)
	}
	b.releaseHost()
	b.alloc.Unreserve(b.addr, b.size)
	b.dev = nil
}
