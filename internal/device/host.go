package device

import (
	"math/bits"
	"sync"
)

// maxPooledClass is the largest size class (1<<maxPooledClass bytes) kept in
// the pool; bigger host buffers are left to the GC.
const maxPooledClass = 26

// HostPool is a HostAllocator backed by power-of-two sync.Pools.
type HostPool struct {
	classes [maxPooledClass + 1]sync.Pool
}

// NewHostPool returns an empty pool.
func NewHostPool() *HostPool { return &HostPool{} }

func sizeClass(size int64) int {
	if size <= 1 {
		return 0
	}
	return bits.Len64(uint64(size - 1))
}

// Alloc returns a slice of exactly size bytes. Contents are unspecified.
func (p *HostPool) Alloc(size int64) []byte {
	if size <= 0 {
		return []byte{}
	}
	c := sizeClass(size)
	if c > maxPooledClass {
		return make([]byte, size)
	}
	if v := p.classes[c].Get(); v != nil {
		b := *(v.(*[]byte))
		return b[:size]
	}
	return make([]byte, size, 1<<c)
}

// Free returns b to the pool. The caller must not use b afterwards.
func (p *HostPool) Free(b []byte) {
	c := cap(b)
	if c == 0 || c&(c-1) != 0 {
		return
	}
	class := bits.Len64(uint64(c)) - 1
	if class > maxPooledClass {
		return
	}
	b = b[:c]
	p.classes[class].Put(&b)
}
