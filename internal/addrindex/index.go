// Package addrindex maps disjoint half-open address intervals to values and
// answers overlap queries.
package addrindex

import (
	"errors"
	"sort"
)

// ErrOverlap is returned by Insert when the new interval intersects an
// existing one.
var ErrOverlap = errors.New("addrindex: interval overlaps an existing entry")

type entry[V any] struct {
	start, end uint64
	val        V
}

// Index keeps entries sorted by start address. Addresses handed out by a bump
// allocator arrive in increasing order, so Insert is an append in the common
// case.
type Index[V any] struct {
	entries []entry[V]
}

// New returns an empty index.
func New[V any]() *Index[V] { return &Index[V]{} }

// Len reports the number of indexed intervals.
func (ix *Index[V]) Len() int { return len(ix.entries) }

// Insert adds [start, start+length). Zero-length intervals contain no address
// and are not indexed.
func (ix *Index[V]) Insert(start, length uint64, v V) error {
	if length == 0 {
		return nil
	}
	end := start + length
	i := sort.Search(len(ix.entries), func(i int) bool { return ix.entries[i].start >= start })
	if i > 0 && ix.entries[i-1].end > start {
		return ErrOverlap
	}
	if i < len(ix.entries) && ix.entries[i].start < end {
		return ErrOverlap
	}
	if i == len(ix.entries) {
		ix.entries = append(ix.entries, entry[V]{start: start, end: end, val: v})
		return nil
	}
	ix.entries = append(ix.entries, entry[V]{})
	copy(ix.entries[i+1:], ix.entries[i:])
	ix.entries[i] = entry[V]{start: start, end: end, val: v}
	return nil
}

// Delete removes the interval starting at start. It reports whether one existed.
func (ix *Index[V]) Delete(start uint64) bool {
	i := sort.Search(len(ix.entries), func(i int) bool { return ix.entries[i].start >= start })
	if i == len(ix.entries) || ix.entries[i].start != start {
		return false
	}
	copy(ix.entries[i:], ix.entries[i+1:])
	var zero entry[V]
	ix.entries[len(ix.entries)-1] = zero
	ix.entries = ix.entries[:len(ix.entries)-1]
	return true
}

// Lookup returns the value whose interval intersects [addr, addr+size).
// Exactly adjacent intervals do not intersect.
func (ix *Index[V]) Lookup(addr, size uint64) (V, bool) {
	var zero V
	if size == 0 {
		return zero, false
	}
	end := addr + size
	// last entry starting before the end of the query
	i := sort.Search(len(ix.entries), func(i int) bool { return ix.entries[i].start >= end }) - 1
	if i < 0 {
		return zero, false
	}
	if e := ix.entries[i]; e.end > addr {
		return e.val, true
	}
	return zero, false
}

// Each calls fn for every entry in address order until fn returns false.
func (ix *Index[V]) Each(fn func(start, length uint64, v V) bool) {
	for _, e := range ix.entries {
		if !fn(e.start, e.end-e.start, e.val) {
			return
		}
	}
}
