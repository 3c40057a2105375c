package spill

import (
	"fmt"

	"spilld/internal/device"
)

// HeaderType identifies serialized buffers.
const HeaderType = "spill.Buffer"

// Header describes the frames produced by HostSerialize.
type Header struct {
	Type          string  `json:"type"`
	Size          int64   `json:"size"`
	FrameLengths  []int64 `json:"frame_lengths"`
	ReadOnly      bool    `json:"read_only,omitempty"`
	Compression   string  `json:"compression,omitempty"`
	PackedLengths []int64 `json:"packed_lengths,omitempty"`
	RawFrames     []bool  `json:"raw_frames,omitempty"`
}

// HostSerialize spills b and returns a header plus views of its host bytes.
// The views alias b's host storage until b is next written and stay valid
// after b is unspilled.
func (b *Buffer) HostSerialize() (Header, [][]byte, error) {
	if err := b.MoveInplace(device.Host); err != nil {
		return Header{}, nil, err
	}
	b.hostShared = true
	h := Header{
		Type:         HeaderType,
		Size:         b.size,
		FrameLengths: []int64{b.size},
		ReadOnly:     b.readOnly,
	}
	return h, [][]byte{b.host[:b.size:b.size]}, nil
}

// HostDeserialize rebuilds an untracked buffer in host memory from frames. The
// frames are copied, so the result owns its storage. No device storage is
// committed until the buffer is first used on device.
func HostDeserialize(alloc device.Allocator, hostAlloc device.HostAllocator, h Header, frames [][]byte) (*Handle, error) {
	host, err := joinFrames(hostAlloc, h, frames)
	if err != nil {
		return nil, err
	}
	b := newBuffer(nil, alloc, hostAlloc, alloc.Reserve(h.Size), h.Size)
	b.setHost(host, h.ReadOnly)
	return newHandle(b), nil
}

func (b *Buffer) setHost(host []byte, readOnly bool) {
	b.location = device.Host
	b.host = host
	b.hostShared = false
	b.readOnly = readOnly
}

// joinFrames validates frames against h and copies them into one host
// allocation. Frames may alias another buffer's host storage, so they are
// never adopted directly.
func joinFrames(hostAlloc device.HostAllocator, h Header, frames [][]byte) ([]byte, error) {
	if h.Type != HeaderType {
		return nil, fmt.Errorf("unexpected header type %q", h.Type)
	}
	if h.Compression != "" {
		return nil, fmt.Errorf("frames are packed with %q, unpack them first", h.Compression)
	}
	if len(frames) != len(h.FrameLengths) {
		return nil, fmt.Errorf("header lists %d frames, got %d", len(h.FrameLengths), len(frames))
	}
	var total int64
	for i, f := range frames {
		if int64(len(f)) != h.FrameLengths[i] {
			return nil, fmt.Errorf("frame %d: length %d, header says %d", i, len(f), h.FrameLengths[i])
		}
		total += int64(len(f))
	}
	if total != h.Size {
		return nil, fmt.Errorf("frames hold %d bytes, header says %d", total, h.Size)
	}
	host := hostAlloc.Alloc(total)
	off := 0
	for _, f := range frames {
		off += copy(host[off:], f)
	}
	return host, nil
}
