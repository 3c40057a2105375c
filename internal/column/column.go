// Package column is a small int64 column layer on top of spill buffers. Columns
// are views: several columns may share one base buffer through spill handles,
// and materialization gives a view its own base buffer.
package column

import (
	"encoding/binary"
	"errors"
	"fmt"

	"spilld/internal/spill"
)

const elemSize = 8

// ErrClosed is returned by operations on a closed column.
var ErrClosed = errors.New("column: closed")

// Column is a range of int64 values inside a base buffer.
type Column struct {
	h      *spill.Handle
	offset int64 // in elements
	length int64 // in elements
}

// New allocates a registered base buffer holding values.
func New(m *spill.Manager, values []int64) (*Column, error) {
	h, err := m.Allocate(int64(len(values)) * elemSize)
	if err != nil {
		return nil, err
	}
	if err := h.Buffer().WriteRange(0, encode(values)); err != nil {
		_ = h.Close()
		return nil, err
	}
	return &Column{h: h, length: int64(len(values))}, nil
}

// Range is a convenience returning a column holding start, start+1, ..., end-1.
func Range(m *spill.Manager, start, end int64) (*Column, error) {
	if end < start {
		end = start
	}
	values := make([]int64, end-start)
	for i := range values {
		values[i] = start + int64(i)
	}
	return New(m, values)
}

func fromHandle(h *spill.Handle, offset, length int64) *Column {
	return &Column{h: h, offset: offset, length: length}
}

func (c *Column) Len() int64 { return c.length }

// Offset is the position of the first element inside the base buffer.
func (c *Column) Offset() int64 { return c.offset }

// Buffer returns the base buffer the column reads from.
func (c *Column) Buffer() *spill.Buffer { return c.h.Buffer() }

func (c *Column) Closed() bool { return c.h.Closed() }

// ReadOnly reports whether the column was materialized read-only.
func (c *Column) ReadOnly() bool { return c.h.Buffer().ReadOnly() }

// Spilled reports whether the base buffer lives in host memory.
func (c *Column) Spilled() bool { return c.h.Buffer().Spilled() }

// Spillable reports whether the base buffer may be spilled.
func (c *Column) Spillable() bool { return c.h.Buffer().Spillable() }

// SharesBase reports whether the column covers only part of its base buffer or
// another handle references the same buffer.
func (c *Column) SharesBase() bool {
	b := c.h.Buffer()
	return b.Handles() > 1 || c.offset != 0 || c.length*elemSize != b.Size()
}

// Close releases the column's reference to its base buffer.
func (c *Column) Close() error { return c.h.Close() }

func (c *Column) byteRange() (int64, int64) {
	return c.offset * elemSize, c.length * elemSize
}

// Slice returns a view of elements [start, end) sharing the base buffer.
func (c *Column) Slice(start, end int64) (*Column, error) {
	if c.Closed() {
		return nil, ErrClosed
	}
	if start < 0 || end > c.length || start > end {
		return nil, fmt.Errorf("column: slice [%d:%d] out of range (len %d)", start, end, c.length)
	}
	return fromHandle(c.h.Share(), c.offset+start, end-start), nil
}

// Values copies the column out of wherever its base buffer lives, without
// changing residency.
func (c *Column) Values() ([]int64, error) {
	if c.Closed() {
		return nil, ErrClosed
	}
	off, n := c.byteRange()
	raw, err := c.h.Buffer().ReadRange(off, n)
	if err != nil {
		return nil, err
	}
	return decode(raw), nil
}

// Fill sets elements [start, end) to v. Writes go to the base buffer's current
// residency, so they are visible through every view of it.
func (c *Column) Fill(start, end, v int64) error {
	if c.Closed() {
		return ErrClosed
	}
	if start < 0 || end > c.length || start > end {
		return fmt.Errorf("column: fill [%d:%d] out of range (len %d)", start, end, c.length)
	}
	values := make([]int64, end-start)
	for i := range values {
		values[i] = v
	}
	return c.h.Buffer().WriteRange((c.offset+start)*elemSize, encode(values))
}

// deviceValues unspills the base buffer and decodes the column's range.
func (c *Column) deviceValues() ([]int64, error) {
	if c.Closed() {
		return nil, ErrClosed
	}
	dev, err := c.h.Buffer().DeviceBytes()
	if err != nil {
		return nil, err
	}
	off, n := c.byteRange()
	return decode(dev[off : off+n]), nil
}

func encode(values []int64) []byte {
	out := make([]byte, len(values)*elemSize)
	for i, v := range values {
		binary.LittleEndian.PutUint64(out[i*elemSize:], uint64(v))
	}
	return out
}

func decode(raw []byte) []int64 {
	out := make([]int64, len(raw)/elemSize)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(raw[i*elemSize:]))
	}
	return out
}
