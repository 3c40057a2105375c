package column

import (
	"testing"
)

func TestHostSerializeView(t *testing.T) {
	m := newManager(t, nil)
	base := mustRange(t, m, 0, 10)
	view := mustSlice(t, base, 3, 6)
	h, frames, err := view.HostSerialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if !base.Spilled() {
		t.Fatalf("serializing a view spills its base")
	}
	if h.Length != 3 || h.Buffer.Size != 3*elemSize || len(frames) != 1 {
		t.Fatalf("unexpected header %+v", h)
	}
	out, err := HostDeserialize(m, h, frames)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if !out.Spilled() {
		t.Fatalf("deserialized columns start in host memory")
	}
	assertValues(t, out, 3, 4, 5)
	if err := out.Fill(0, 1, -1); err != nil {
		t.Fatalf("fill: %v", err)
	}
	assertValues(t, view, 3, 4, 5)
}

func TestHostDeserializeRejectsBadHeader(t *testing.T) {
	m := newManager(t, nil)
	c := mustRange(t, m, 0, 2)
	h, frames, err := c.HostSerialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	bad := h
	bad.DType = "float32"
	if _, err := HostDeserialize(m, bad, frames); err == nil {
		t.Fatalf("dtype mismatch should fail")
	}
	bad = h
	bad.Length = 3
	if _, err := HostDeserialize(m, bad, frames); err == nil {
		t.Fatalf("length mismatch should fail")
	}
	bad = h
	bad.Length = -2
	if _, err := HostDeserialize(m, bad, frames); err == nil {
		t.Fatalf("negative length should fail")
	}
}

func TestHostDeserializeRejectsOverflowingLength(t *testing.T) {
	m := newManager(t, nil)
	c := mustRange(t, m, 0, 0)
	h, frames, err := c.HostSerialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	// 1<<61 elements of 8 bytes wrap to a zero byte size
	h.Length = 1 << 61
	if _, err := HostDeserialize(m, h, frames); err == nil {
		t.Fatalf("length without backing bytes should fail")
	}
	if m.Len() != 1 {
		t.Fatalf("failed deserialization registered a buffer")
	}
}

func TestHostDeserializeOwnsItsStorage(t *testing.T) {
	m := newManager(t, nil)
	src := mustRange(t, m, 0, 4)
	h, frames, err := src.HostSerialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	out, err := HostDeserialize(m, h, frames)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if out.Buffer() == src.Buffer() {
		t.Fatalf("deserialization must create a new base buffer")
	}
	if err := out.Fill(0, 4, 99); err != nil {
		t.Fatalf("fill copy: %v", err)
	}
	if !src.Spilled() || !out.Spilled() {
		t.Fatalf("both buffers should still be in host memory")
	}
	assertValues(t, src, 0, 1, 2, 3)
	assertValues(t, out, 99, 99, 99, 99)
}

func TestWriteAfterSerializeKeepsFrames(t *testing.T) {
	m := newManager(t, nil)
	src := mustRange(t, m, 0, 4)
	h, frames, err := src.HostSerialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if err := src.Fill(0, 4, 7); err != nil {
		t.Fatalf("fill source: %v", err)
	}
	out, err := HostDeserialize(m, h, frames)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	assertValues(t, out, 0, 1, 2, 3)
	assertValues(t, src, 7, 7, 7, 7)
}

func TestFrameRoundTrip(t *testing.T) {
	m := newManager(t, nil)
	f := newFrame(t, m, 3, "a", "b")
	fh, frames, err := f.HostSerialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	out, err := HostDeserializeFrame(m, fh, frames)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got := out.Names(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("names = %v", got)
	}
	assertValues(t, out.Column("b"), 100, 101, 102)
	if _, err := HostDeserializeFrame(m, fh, frames[:1]); err == nil {
		t.Fatalf("missing frames should fail")
	}
}
