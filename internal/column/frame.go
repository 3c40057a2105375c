package column

import (
	"errors"
	"fmt"
)

// Frame is an ordered set of equal-length named columns.
type Frame struct {
	names []string
	cols  []*Column
}

// NewFrame takes ownership of cols.
func NewFrame(names []string, cols []*Column) (*Frame, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("column: %d names for %d columns", len(names), len(cols))
	}
	seen := make(map[string]struct{}, len(names))
	for i, c := range cols {
		if _, dup := seen[names[i]]; dup {
			return nil, fmt.Errorf("column: duplicate column name %q", names[i])
		}
		seen[names[i]] = struct{}{}
		if c.Len() != cols[0].Len() {
			return nil, fmt.Errorf("column: %q has length %d, want %d", names[i], c.Len(), cols[0].Len())
		}
	}
	return &Frame{names: append([]string(nil), names...), cols: append([]*Column(nil), cols...)}, nil
}

func (f *Frame) Names() []string { return append([]string(nil), f.names...) }

// Columns returns the frame's columns in order.
func (f *Frame) Columns() []*Column { return append([]*Column(nil), f.cols...) }

// Column returns the named column or nil.
func (f *Frame) Column(name string) *Column {
	for i, n := range f.names {
		if n == name {
			return f.cols[i]
		}
	}
	return nil
}

// Len is the number of rows.
func (f *Frame) Len() int64 {
	if len(f.cols) == 0 {
		return 0
	}
	return f.cols[0].Len()
}

// Slice returns a frame of views over rows [start, end).
func (f *Frame) Slice(start, end int64) (*Frame, error) {
	out := &Frame{names: f.Names(), cols: make([]*Column, 0, len(f.cols))}
	for _, c := range f.cols {
		v, err := c.Slice(start, end)
		if err != nil {
			_ = out.Close()
			return nil, err
		}
		out.cols = append(out.cols, v)
	}
	return out, nil
}

// Fill sets rows [start, end) of every column to v.
func (f *Frame) Fill(start, end, v int64) error {
	for _, c := range f.cols {
		if err := c.Fill(start, end, v); err != nil {
			return err
		}
	}
	return nil
}

// Values returns every column's values keyed by name.
func (f *Frame) Values() (map[string][]int64, error) {
	out := make(map[string][]int64, len(f.cols))
	for i, c := range f.cols {
		v, err := c.Values()
		if err != nil {
			return nil, err
		}
		out[f.names[i]] = v
	}
	return out, nil
}

// Close closes every column.
func (f *Frame) Close() error {
	var errs []error
	for _, c := range f.cols {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
