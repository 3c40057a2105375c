package spill

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Frame codecs understood by PackFramesWith and UnpackFrames.
const (
	CompressionLZ4  = "lz4"
	CompressionZstd = "zstd"
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// compressFrame returns nil when f should be stored raw.
func compressFrame(codec string, f []byte) ([]byte, error) {
	switch codec {
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(f)))
		n, err := lz4.CompressBlock(f, dst, nil)
		if err != nil || n == 0 {
			return nil, err
		}
		return dst[:n], nil
	case CompressionZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(f, nil), nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", codec)
	}
}

func decompressFrame(codec string, src []byte, size int64) ([]byte, error) {
	switch codec {
	case CompressionLZ4:
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return nil, err
		}
		return dst[:n], nil
	case CompressionZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		return dec.DecodeAll(src, make([]byte, 0, size))
	default:
		return nil, fmt.Errorf("unsupported compression %q", codec)
	}
}

// PackFrames packs frames with LZ4 block compression.
func PackFrames(h Header, frames [][]byte) (Header, []byte, error) {
	return PackFramesWith(h, frames, CompressionLZ4)
}

// PackFramesWith compresses each frame with codec and returns a header
// describing the single packed payload. Frames that do not shrink are stored
// raw.
func PackFramesWith(h Header, frames [][]byte, codec string) (Header, []byte, error) {
	if h.Compression != "" {
		return h, nil, fmt.Errorf("frames already packed with %q", h.Compression)
	}
	out := h
	out.Compression = codec
	out.PackedLengths = make([]int64, len(frames))
	out.RawFrames = make([]bool, len(frames))
	var payload []byte
	for i, f := range frames {
		c, err := compressFrame(codec, f)
		if err != nil {
			return h, nil, fmt.Errorf("compress frame %d: %w", i, err)
		}
		if c == nil || len(c) >= len(f) {
			payload = append(payload, f...)
			out.PackedLengths[i] = int64(len(f))
			out.RawFrames[i] = true
			continue
		}
		payload = append(payload, c...)
		out.PackedLengths[i] = int64(len(c))
	}
	return out, payload, nil
}

// UnpackFrames reverses PackFramesWith.
func UnpackFrames(h Header, payload []byte) (Header, [][]byte, error) {
	if h.Compression != CompressionLZ4 && h.Compression != CompressionZstd {
		return h, nil, fmt.Errorf("unsupported compression %q", h.Compression)
	}
	if len(h.PackedLengths) != len(h.FrameLengths) || len(h.RawFrames) != len(h.FrameLengths) {
		return h, nil, errors.New("packed header is inconsistent")
	}
	frames := make([][]byte, len(h.FrameLengths))
	var off int64
	for i, plen := range h.PackedLengths {
		if plen < 0 || off+plen > int64(len(payload)) {
			return h, nil, fmt.Errorf("frame %d: payload truncated", i)
		}
		src := payload[off : off+plen]
		off += plen
		if h.RawFrames[i] {
			frames[i] = append([]byte(nil), src...)
			continue
		}
		f, err := decompressFrame(h.Compression, src, h.FrameLengths[i])
		if err != nil {
			return h, nil, fmt.Errorf("decompress frame %d: %w", i, err)
		}
		if int64(len(f)) != h.FrameLengths[i] {
			return h, nil, errors.New("decompressed size mismatch")
		}
		frames[i] = f
	}
	out := h
	out.Compression = ""
	out.PackedLengths = nil
	out.RawFrames = nil
	return out, frames, nil
}
