package column

import (
	"fmt"
	"reflect"
	"sort"

	"spilld/internal/device"
	"spilld/internal/spill"
)

// Container is implemented by anything that can list its columns.
type Container interface {
	Columns() []*Column
}

var (
	columnType    = reflect.TypeOf((*Column)(nil))
	containerType = reflect.TypeOf((*Container)(nil)).Elem()
)

// GetColumns walks container and returns every distinct column it reaches, in
// first-occurrence order. Maps, slices, arrays, pointers, interfaces, columns
// and Containers are followed; anything else is ignored. Map entries are
// visited in key order.
func GetColumns(container any) []*Column {
	var out []*Column
	seen := make(map[*Column]struct{})
	walk(reflect.ValueOf(container), func(c *Column) {
		if c == nil {
			return
		}
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	})
	return out
}

func walk(v reflect.Value, visit func(*Column)) {
	if !v.IsValid() {
		return
	}
	if v.Type() == columnType {
		if !v.IsNil() {
			visit(v.Interface().(*Column))
		}
		return
	}
	if v.Type().Implements(containerType) && v.CanInterface() {
		if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
			return
		}
		for _, c := range v.Interface().(Container).Columns() {
			visit(c)
		}
		return
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if !v.IsNil() {
			walk(v.Elem(), visit)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			walk(v.Index(i), visit)
		}
	case reflect.Map:
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for _, k := range keys {
			walk(v.MapIndex(k), visit)
		}
	}
}

// MarkColumnsAsReadOnlyInplace gives every column that shares a base buffer
// its own registered, read-only copy. The copy is made from wherever the old
// base lives, so a spilled base stays spilled.
func MarkColumnsAsReadOnlyInplace(m *spill.Manager, cols []*Column) error {
	for _, c := range cols {
		if c.Closed() {
			return ErrClosed
		}
		if !c.SharesBase() {
			continue
		}
		off, n := c.byteRange()
		raw, err := c.h.Buffer().ReadRange(off, n)
		if err != nil {
			return err
		}
		h, err := m.Allocate(n)
		if err != nil {
			return err
		}
		if err := h.Buffer().WriteRange(0, raw); err != nil {
			_ = h.Close()
			return err
		}
		h.Buffer().MarkReadOnly()
		old := c.h
		c.h, c.offset = h, 0
		if err := old.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Concat materializes any views among cols and appends them into a new
// device-resident column. Inputs are read where they live.
func Concat(m *spill.Manager, cols ...*Column) (*Column, error) {
	if err := MarkColumnsAsReadOnlyInplace(m, cols); err != nil {
		return nil, err
	}
	release := hold(cols...)
	defer release()
	var total int64
	for _, c := range cols {
		total += c.Len()
	}
	values := make([]int64, 0, total)
	for _, c := range cols {
		v, err := c.Values()
		if err != nil {
			return nil, err
		}
		values = append(values, v...)
	}
	out, err := New(m, values)
	if err != nil {
		return nil, err
	}
	if err := out.Buffer().MoveInplace(device.Device); err != nil {
		_ = out.Close()
		return nil, err
	}
	return out, nil
}

// ConcatFrames concatenates frames with identical column names row-wise.
func ConcatFrames(m *spill.Manager, frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return &Frame{}, nil
	}
	names := frames[0].Names()
	out := &Frame{names: names}
	for _, name := range names {
		parts := make([]*Column, 0, len(frames))
		for _, f := range frames {
			c := f.Column(name)
			if c == nil {
				_ = out.Close()
				return nil, fmt.Errorf("column: frame missing column %q", name)
			}
			parts = append(parts, c)
		}
		c, err := Concat(m, parts...)
		if err != nil {
			_ = out.Close()
			return nil, err
		}
		out.cols = append(out.cols, c)
	}
	return out, nil
}
