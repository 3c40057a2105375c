package spill

import "spilld/internal/device"

// Ptr returns b's device address for use outside the tracking system. A
// spilled buffer is first moved back to device memory; only then is it marked
// exposed, which makes it permanently unspillable. On allocation failure the
// buffer is left spilled and unexposed.
func (b *Buffer) Ptr() (device.Address, error) {
	if b.released {
		return 0, errInvalidOperation(b.id, "buffer released")
	}
	if b.location == device.Host {
		if err := b.unspill(); err != nil {
			return 0, err
		}
	}
	if !b.exposed {
		b.exposed = true
		if b.mgr != nil {
			b.mgr.noteExpose(b)
		}
	}
	return b.addr, nil
}

// ArrayInterface describes a buffer as a one-dimensional byte array. Building
// it neither unspills nor exposes the buffer; only Data does.
type ArrayInterface struct {
	Shape    []int64
	TypeStr  string
	Version  int
	Location device.Location

	buf *Buffer
}

// ArrayInterface returns a descriptor of b.
func (b *Buffer) ArrayInterface() ArrayInterface {
	return ArrayInterface{
		Shape:    []int64{b.size},
		TypeStr:  "|u1",
		Version:  3,
		Location: b.location,
		buf:      b,
	}
}

// Data resolves the descriptor's address with Ptr semantics.
func (a ArrayInterface) Data() (device.Address, error) { return a.buf.Ptr() }
