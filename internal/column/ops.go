package column

import (
	"fmt"

	"spilld/internal/spill"
)

// hold raises the ownership count of every operand's base buffer for the
// duration of a computation so eviction cannot pick them.
func hold(cols ...*Column) (release func()) {
	releases := make([]func(), 0, len(cols))
	for _, c := range cols {
		releases = append(releases, c.h.Buffer().Acquire())
	}
	return func() {
		for _, r := range releases {
			r()
		}
	}
}

// Add returns a + b elementwise in a new column.
func Add(m *spill.Manager, a, b *Column) (*Column, error) {
	if a.Len() != b.Len() {
		return nil, fmt.Errorf("column: length mismatch %d != %d", a.Len(), b.Len())
	}
	release := hold(a, b)
	defer release()
	av, err := a.deviceValues()
	if err != nil {
		return nil, err
	}
	bv, err := b.deviceValues()
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(av))
	for i := range out {
		out[i] = av[i] + bv[i]
	}
	return New(m, out)
}

// Abs returns |a| elementwise in a new column.
func Abs(m *spill.Manager, a *Column) (*Column, error) {
	release := hold(a)
	defer release()
	av, err := a.deviceValues()
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(av))
	for i, v := range av {
		if v < 0 {
			v = -v
		}
		out[i] = v
	}
	return New(m, out)
}
