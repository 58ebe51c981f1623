// Package arena implements a bump allocator for the write-buffer path of
// the storage engine. Memory is carved out of slabs and never freed
// individually; the whole arena is reclaimed at once when its owner (a
// memtable or similar write buffer) is discarded.
package arena

import (
	"sync/atomic"
)

// blockSize is the size of a standard slab. Allocations larger than a
// quarter of this are given their own private slab so they don't waste
// the tail of a shared one.
const blockSize = 4096

// pointerAlign is the alignment used by AllocateAligned: the larger of a
// pointer's size and 8 bytes, which must be a power of two.
const pointerAlign = 8

// sliceOverhead approximates the bookkeeping cost of tracking one more
// slab, mirroring the original arena's sizeof(char*) accounting.
const sliceOverhead = 8

// Arena is a bump allocator. The zero value is ready to use. An Arena
// must not be used concurrently by more than one writer; MemoryUsage may
// be read concurrently with allocation.
type Arena struct {
	// curr is the unused tail of the slab currently being carved from.
	curr []byte
	// used is how many bytes of the current slab have been carved out
	// so far; needed to compute alignment slop relative to the slab's
	// own start, since curr's length alone doesn't reveal that.
	used int

	// blocks keeps every slab alive for the lifetime of the arena.
	blocks [][]byte

	// memoryUsage is updated with relaxed atomic ordering: the arena
	// itself is single-writer, but MemoryUsage may be called from
	// another goroutine concurrently (e.g. a size-triggered flush
	// check).
	memoryUsage atomic.Uint64
}

// New returns an empty Arena.
func New() *Arena {
	return &Arena{}
}

// Allocate returns a slice of n bytes, carved from the current slab or a
// new one. The returned slice is only valid for the lifetime of the
// Arena.
func (a *Arena) Allocate(n int) []byte {
	if n <= 0 {
		return nil
	}
	if n <= len(a.curr) {
		result := a.curr[:n:n]
		a.curr = a.curr[n:]
		a.used += n
		return result
	}
	return a.allocateFallback(n)
}

// allocateFallback handles allocations that don't fit in the remaining
// space of the current slab: large allocations get a private slab,
// everything else starts a fresh standard-size slab and the unused tail
// of the old one is abandoned.
func (a *Arena) allocateFallback(n int) []byte {
	if n > blockSize/4 {
		// Large relative to a slab: give it a dedicated allocation so we
		// don't waste up to 3/4 of a block on leftover space.
		block := a.newBlock(n)
		return block
	}

	block := a.newBlock(blockSize)
	a.curr = block[n:]
	a.used = n
	return block[:n:n]
}

// AllocateAligned returns a slice of n bytes whose start is aligned to
// pointerAlign relative to the slab it was carved from.
func (a *Arena) AllocateAligned(n int) []byte {
	if n <= 0 {
		return nil
	}

	slop := 0
	if mod := a.used % pointerAlign; mod != 0 {
		slop = pointerAlign - mod
	}

	needed := n + slop
	if needed <= len(a.curr) {
		a.curr = a.curr[slop:]
		a.used += slop
		result := a.curr[:n:n]
		a.curr = a.curr[n:]
		a.used += n
		return result
	}
	// allocateFallback always starts a fresh slab at offset 0, which is
	// aligned for any alignment this package supports.
	return a.allocateFallback(n)
}

// newBlock allocates a dedicated slab of n bytes, tracks it for the
// lifetime of the arena, and accounts for it in MemoryUsage.
func (a *Arena) newBlock(n int) []byte {
	block := make([]byte, n)
	a.blocks = append(a.blocks, block)
	a.memoryUsage.Add(uint64(n) + sliceOverhead)
	return block
}

// MemoryUsage returns the approximate number of bytes allocated by this
// Arena, including slab bookkeeping overhead. Safe to call concurrently
// with allocation.
func (a *Arena) MemoryUsage() uint64 {
	return a.memoryUsage.Load()
}
