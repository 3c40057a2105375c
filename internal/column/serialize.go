package column

import (
	"fmt"

	"spilld/internal/spill"
)

// DType is the only element type columns carry.
const DType = "int64"

// Header describes a serialized column.
type Header struct {
	DType  string       `json:"dtype"`
	Length int64        `json:"length"`
	Buffer spill.Header `json:"buffer"`
}

// FrameHeader describes a serialized frame. Column i owns Counts[i] frames.
type FrameHeader struct {
	Names   []string `json:"names"`
	Columns []Header `json:"columns"`
	Counts  []int    `json:"counts"`
}

// HostSerialize spills the column's base buffer and returns its bytes. A view
// serializes only its own range, copied out of the base's host memory.
func (c *Column) HostSerialize() (Header, [][]byte, error) {
	if c.Closed() {
		return Header{}, nil, ErrClosed
	}
	bh, frames, err := c.h.Buffer().HostSerialize()
	if err != nil {
		return Header{}, nil, err
	}
	off, n := c.byteRange()
	if off != 0 || n != bh.Size {
		frame := make([]byte, n)
		copy(frame, frames[0][off:off+n])
		frames = [][]byte{frame}
		bh.Size = n
		bh.FrameLengths = []int64{n}
	}
	return Header{DType: DType, Length: c.length, Buffer: bh}, frames, nil
}

// HostDeserialize rebuilds a column whose registered base buffer starts out in
// host memory.
func HostDeserialize(m *spill.Manager, h Header, frames [][]byte) (*Column, error) {
	if h.DType != DType {
		return nil, fmt.Errorf("column: unsupported dtype %q", h.DType)
	}
	if h.Length < 0 || h.Length > h.Buffer.Size/elemSize || h.Length*elemSize != h.Buffer.Size {
		return nil, fmt.Errorf("column: length %d does not match buffer size %d", h.Length, h.Buffer.Size)
	}
	handle, err := m.HostDeserialize(h.Buffer, frames)
	if err != nil {
		return nil, err
	}
	return fromHandle(handle, 0, h.Length), nil
}

// HostSerialize serializes every column of f.
func (f *Frame) HostSerialize() (FrameHeader, [][]byte, error) {
	fh := FrameHeader{Names: f.Names()}
	var frames [][]byte
	for _, c := range f.cols {
		h, fs, err := c.HostSerialize()
		if err != nil {
			return FrameHeader{}, nil, err
		}
		fh.Columns = append(fh.Columns, h)
		fh.Counts = append(fh.Counts, len(fs))
		frames = append(frames, fs...)
	}
	return fh, frames, nil
}

// HostDeserializeFrame is the inverse of Frame.HostSerialize.
func HostDeserializeFrame(m *spill.Manager, fh FrameHeader, frames [][]byte) (*Frame, error) {
	if len(fh.Names) != len(fh.Columns) || len(fh.Columns) != len(fh.Counts) {
		return nil, fmt.Errorf("column: malformed frame header")
	}
	cols := make([]*Column, 0, len(fh.Columns))
	closeAll := func() {
		for _, c := range cols {
			_ = c.Close()
		}
	}
	for i, h := range fh.Columns {
		n := fh.Counts[i]
		if n < 0 || n > len(frames) {
			closeAll()
			return nil, fmt.Errorf("column: frame header wants %d frames, %d left", n, len(frames))
		}
		c, err := HostDeserialize(m, h, frames[:n])
		if err != nil {
			closeAll()
			return nil, err
		}
		cols = append(cols, c)
		frames = frames[n:]
	}
	if len(frames) != 0 {
		closeAll()
		return nil, fmt.Errorf("column: %d unused frames", len(frames))
	}
	return NewFrame(fh.Names, cols)
}
