package device

import (
	"errors"
	"testing"
)

func TestReserveNeverReusesRanges(t *testing.T) {
	s := NewSimulated(SimulatedConfig{})
	a := s.Reserve(10)
	s.Unreserve(a, 10)
	b := s.Reserve(10)
	if a == b {
		t.Fatalf("address %#x handed out twice", uint64(a))
	}
	if uint64(b-a) != uint64(defaultAlignment) {
		t.Fatalf("expected aligned spacing %d, got %d", defaultAlignment, b-a)
	}
	c := s.Reserve(1000)
	d := s.Reserve(1)
	if uint64(d-c) < 1000 || uint64(d)%uint64(defaultAlignment) != 0 {
		t.Fatalf("ranges overlap or misaligned: c=%#x d=%#x", uint64(c), uint64(d))
	}
}

func TestCommitRespectsCapacity(t *testing.T) {
	s := NewSimulated(SimulatedConfig{CapacityBytes: 100})
	a := s.Reserve(60)
	b := s.Reserve(60)
	if _, err := s.Commit(a, 60); err != nil {
		t.Fatalf("commit a: %v", err)
	}
	if _, err := s.Commit(b, 60); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("expected out of memory, got %v", err)
	}
	s.Decommit(a, 60)
	mem, err := s.Commit(b, 60)
	if err != nil {
		t.Fatalf("commit b after decommit: %v", err)
	}
	if len(mem) != 60 {
		t.Fatalf("len=%d", len(mem))
	}
	st := s.Stats()
	if st.CommittedBytes != 60 || st.ReservedBytes != 120 || st.Failures != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	s.Unreserve(b, 60)
	s.Unreserve(a, 60)
	if st := s.Stats(); st.CommittedBytes != 0 || st.ReservedBytes != 0 {
		t.Fatalf("expected empty device, got %+v", st)
	}
}

func TestCommitTwiceFails(t *testing.T) {
	s := NewSimulated(SimulatedConfig{})
	a := s.Reserve(8)
	if _, err := s.Commit(a, 8); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := s.Commit(a, 8); err == nil {
		t.Fatalf("expected error on double commit")
	}
}

func TestParseLocation(t *testing.T) {
	for in, want := range map[string]Location{"cpu": Host, "HOST": Host, "gpu": Device, " device ": Device} {
		got, err := ParseLocation(in)
		if err != nil || got != want {
			t.Fatalf("ParseLocation(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLocation("disk"); err == nil {
		t.Fatalf("expected error for unknown location")
	}
}

func TestHostPoolSizes(t *testing.T) {
	p := NewHostPool()
	b := p.Alloc(100)
	if len(b) != 100 || cap(b) != 128 {
		t.Fatalf("len=%d cap=%d", len(b), cap(b))
	}
	p.Free(b)
	c := p.Alloc(70)
	if len(c) != 70 {
		t.Fatalf("len=%d", len(c))
	}
	if got := p.Alloc(0); len(got) != 0 {
		t.Fatalf("expected empty slice")
	}
}
