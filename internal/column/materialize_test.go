package column

import (
	"testing"

	"spilld/internal/device"
	"spilld/internal/spill"
)

func newFrame(t *testing.T, m *spill.Manager, n int64, names ...string) *Frame {
	t.Helper()
	cols := make([]*Column, len(names))
	for i := range names {
		cols[i] = mustRange(t, m, int64(i)*100, int64(i)*100+n)
	}
	f, err := NewFrame(names, cols)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	return f
}

// newSharedFrame builds a frame whose columns are views of a single base.
func newSharedFrame(t *testing.T, m *spill.Manager, n int64, names ...string) (*Column, *Frame) {
	t.Helper()
	base := mustRange(t, m, 0, n*int64(len(names)))
	cols := make([]*Column, len(names))
	for i := range names {
		cols[i] = mustSlice(t, base, int64(i)*n, int64(i+1)*n)
	}
	f, err := NewFrame(names, cols)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	return base, f
}

func TestGetColumns(t *testing.T) {
	m := newManager(t, nil)
	f := newFrame(t, m, 3, "a", "b")
	c := mustRange(t, m, 0, 3)
	a := f.Column("a")

	got := GetColumns(map[string]any{
		"z": []any{c, f},
		"y": a,
		"x": 42,
		"w": nil,
	})
	want := []*Column{a, c, f.Column("b")}
	if len(got) != len(want) {
		t.Fatalf("got %d columns, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("column %d differs", i)
		}
	}
	if n := len(GetColumns("not a container")); n != 0 {
		t.Fatalf("scalars have no columns, got %d", n)
	}
	if n := len(GetColumns([]*Frame{f, f})); n != 2 {
		t.Fatalf("repeated frames should dedupe, got %d", n)
	}
}

func TestMarkColumnsAsReadOnlyInplace(t *testing.T) {
	m := newManager(t, nil)
	base, f := newSharedFrame(t, m, 4, "a", "b")
	if m.Len() != 1 {
		t.Fatalf("want 1 base buffer, got %d", m.Len())
	}
	if err := MarkColumnsAsReadOnlyInplace(m, GetColumns(f)); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if m.Len() != 3 {
		t.Fatalf("want 3 base buffers after materialization, got %d", m.Len())
	}
	for _, c := range f.Columns() {
		if !c.ReadOnly() || c.SharesBase() || c.Buffer() == base.Buffer() {
			t.Fatalf("column should own a read-only base")
		}
	}
	assertValues(t, f.Column("b"), 4, 5, 6, 7)
	if err := base.Close(); err != nil {
		t.Fatalf("close base: %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("want 2 base buffers once the parent is gone, got %d", m.Len())
	}
}

func TestMarkSkipsOwnedColumns(t *testing.T) {
	m := newManager(t, nil)
	c := mustRange(t, m, 0, 4)
	buf := c.Buffer()
	if err := MarkColumnsAsReadOnlyInplace(m, []*Column{c}); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if c.Buffer() != buf || c.ReadOnly() || m.Len() != 1 {
		t.Fatalf("a column owning its whole base is left alone")
	}
}

func TestConcatSpilledViews(t *testing.T) {
	m := newManager(t, nil)
	base, whole := newSharedFrame(t, m, 5, "x")
	df1, err := whole.Slice(0, 2)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	df2, err := whole.Slice(2, 5)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if err := base.Buffer().MoveInplace(device.Host); err != nil {
		t.Fatalf("spill: %v", err)
	}

	res, err := ConcatFrames(m, df1, df2)
	if err != nil {
		t.Fatalf("concat: %v", err)
	}
	if m.Len() != 4 {
		t.Fatalf("want 4 base buffers (base, df1, df2, result), got %d", m.Len())
	}
	if !base.Spilled() {
		t.Fatalf("concat must not unspill the shared base")
	}
	for _, c := range append(GetColumns([]*Frame{df1, df2}), res.Columns()...) {
		if c.Spilled() {
			t.Fatalf("materialized inputs and the result live on device")
		}
	}
	assertValues(t, res.Column("x"), 0, 1, 2, 3, 4)
}

func TestConcatColumns(t *testing.T) {
	m := newManager(t, nil)
	a := mustRange(t, m, 0, 2)
	b := mustRange(t, m, 5, 7)
	m.SpillDeviceMemory()
	out, err := Concat(m, a, b)
	if err != nil {
		t.Fatalf("concat: %v", err)
	}
	assertValues(t, out, 0, 1, 5, 6)
	if !a.Spilled() {
		t.Fatalf("reading a whole spilled column must leave it spilled")
	}
	if _, err := ConcatFrames(m, newFrame(t, m, 1, "a"), newFrame(t, m, 1, "b")); err == nil {
		t.Fatalf("frames with different columns cannot be concatenated")
	}
}
