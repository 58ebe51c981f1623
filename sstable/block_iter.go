package sstable

import (
	"encoding/binary"
	"fmt"
)

// block is a decoded block payload: the record region plus its parsed
// restart array. It does not own the underlying bytes; callers (the
// cache, or a reader that owns a []byte read from disk) are responsible
// for the backing memory's lifetime.
type block struct {
	data     []byte // Records only, not including the restart array.
	restarts []byte // Raw restart array, 4 bytes LE per entry.
	numRestarts int
}

// newBlock parses the restart-array trailer of a raw block payload.
func newBlock(contents []byte) (*block, error) {
	if len(contents) < 4 {
		return nil, fmt.Errorf("%w: block too small (%d bytes)", ErrCorruption, len(contents))
	}
	numRestarts := int(binary.LittleEndian.Uint32(contents[len(contents)-4:]))
	restartsSize := 4 * numRestarts
	trailerSize := restartsSize + 4
	if numRestarts < 0 || trailerSize > len(contents) {
		return nil, fmt.Errorf("%w: bad restart count %d in %d-byte block", ErrCorruption, numRestarts, len(contents))
	}
	restartsStart := len(contents) - trailerSize
	return &block{
		data:        contents[:restartsStart],
		restarts:    contents[restartsStart : restartsStart+restartsSize],
		numRestarts: numRestarts,
	}, nil
}

func (blk *block) restartOffset(i int) uint32 {
	return binary.LittleEndian.Uint32(blk.restarts[4*i:])
}

// iterator returns a fresh cursor over the block using cmp for key
// comparisons.
func (blk *block) iterator(cmp Comparator) *blockIter {
	return &blockIter{block: blk, cmp: cmp}
}

// blockIter is a forward/backward cursor over one decoded block, with
// Seek implemented as a binary search over the restart array followed by
// a linear scan, per the format's design.
type blockIter struct {
	block *block
	cmp   Comparator

	// offset is the byte offset of the current record in block.data.
	// It is only meaningful when valid is true.
	offset int
	// nextOffset is the byte offset immediately following the current
	// record, i.e. where Next would resume parsing.
	nextOffset int

	key   []byte // Reconstructed key of the current record (owned buffer).
	value []byte // Value of the current record (a view into block.data).

	valid bool
	err   error
}

func (it *blockIter) Error() error { return it.err }

func (it *blockIter) Valid() bool { return it.valid && it.err == nil }

func (it *blockIter) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.key
}

func (it *blockIter) Value() []byte {
	if !it.Valid() {
		return nil
	}
	return it.value
}

func (it *blockIter) corrupt(reason string) {
	if it.err == nil {
		it.err = fmt.Errorf("%w: %s", ErrCorruption, reason)
	}
	it.valid = false
}

// parseRecord decodes the record starting at off, given the key of the
// record immediately before it (for shared-prefix reconstruction).
// It returns the offset just past the record, or -1 on corruption (in
// which case it.err has been set).
func (it *blockIter) parseRecord(off int, prevKey []byte) int {
	data := it.block.data
	if off < 0 || off > len(data) {
		it.corrupt("record offset out of range")
		return -1
	}
	rest := data[off:]

	shared, n1 := getUvarint(rest)
	if n1 <= 0 {
		it.corrupt("truncated shared_len")
		return -1
	}
	rest = rest[n1:]

	nonShared, n2 := getUvarint(rest)
	if n2 <= 0 {
		it.corrupt("truncated non_shared_len")
		return -1
	}
	rest = rest[n2:]

	valueLen, n3 := getUvarint(rest)
	if n3 <= 0 {
		it.corrupt("truncated value_len")
		return -1
	}
	rest = rest[n3:]

	if shared > uint64(len(prevKey)) {
		it.corrupt("shared_len exceeds previous key length")
		return -1
	}
	need := nonShared + valueLen
	if need > uint64(len(rest)) {
		it.corrupt("record runs past block data")
		return -1
	}

	key := make([]byte, shared+nonShared)
	copy(key, prevKey[:shared])
	copy(key[shared:], rest[:nonShared])
	value := rest[nonShared : nonShared+valueLen]

	it.key = key
	it.value = value
	it.valid = true

	consumed := len(data[off:]) - len(rest) + int(nonShared+valueLen)
	return off + consumed
}

func (it *blockIter) SeekToFirst() {
	if it.err != nil {
		return
	}
	if it.block.numRestarts == 0 {
		it.valid = false
		return
	}
	next := it.parseRecord(int(it.block.restartOffset(0)), nil)
	if next >= 0 {
		it.offset = int(it.block.restartOffset(0))
		it.nextOffset = next
	}
}

func (it *blockIter) SeekToLast() {
	if it.err != nil {
		return
	}
	if it.block.numRestarts == 0 {
		it.valid = false
		return
	}
	it.seekToRestart(it.block.numRestarts - 1)
	if it.err != nil {
		return
	}
	for it.Valid() {
		saveOffset, saveNext, saveKey, saveVal := it.offset, it.nextOffset, it.key, it.value
		it.stepWithin()
		if it.err != nil {
			return
		}
		if !it.Valid() {
			it.offset, it.nextOffset, it.key, it.value = saveOffset, saveNext, saveKey, saveVal
			it.valid = true
			return
		}
	}
}

// seekToRestart positions the iterator at restart point i and decodes
// its (self-contained) record.
func (it *blockIter) seekToRestart(i int) {
	off := int(it.block.restartOffset(i))
	next := it.parseRecord(off, nil)
	if next >= 0 {
		it.offset = off
		it.nextOffset = next
	}
}

// stepWithin advances from the current record to the next one, without
// touching restart bookkeeping. Used internally by Prev/SeekToLast scans
// that already know they're mid-block.
func (it *blockIter) stepWithin() {
	if !it.Valid() {
		return
	}
	if it.nextOffset >= len(it.block.data) {
		it.valid = false
		return
	}
	next := it.parseRecord(it.nextOffset, it.key)
	if next >= 0 {
		it.offset = it.nextOffset
		it.nextOffset = next
	}
}

func (it *blockIter) Next() {
	if !it.Valid() {
		return
	}
	it.stepWithin()
}

func (it *blockIter) Prev() {
	if !it.Valid() || it.err != nil {
		return
	}
	target := it.offset

	// Find the last restart point strictly before the current record.
	restart := it.restartIndexForOffset(target)
	if restart < 0 {
		it.valid = false
		return
	}

	it.seekToRestart(restart)
	if it.err != nil {
		return
	}
	// Scan forward from that restart until the record just before target:
	// the one whose next record starts at target.
	for it.Valid() && it.nextOffset < target {
		it.stepWithin()
	}
}

// restartIndexForOffset returns the index of the last restart point
// whose offset is strictly less than target, or -1 if even the first
// restart point is at or after target (i.e. there is no entry before
// target).
func (it *blockIter) restartIndexForOffset(target int) int {
	if int(it.block.restartOffset(0)) >= target {
		return -1
	}
	lo, hi := 0, it.block.numRestarts-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if int(it.block.restartOffset(mid)) < target {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// Seek positions the iterator at the first record with key >= target,
// using binary search over the restart array followed by a linear scan
// within the located group.
func (it *blockIter) Seek(target []byte) {
	if it.err != nil {
		return
	}
	if it.block.numRestarts == 0 {
		it.valid = false
		return
	}

	lo, hi := 0, it.block.numRestarts-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		it.seekToRestart(mid)
		if it.err != nil {
			return
		}
		if it.cmp.Compare(it.key, target) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	it.seekToRestart(lo)
	if it.err != nil {
		return
	}
	for it.Valid() && it.cmp.Compare(it.key, target) < 0 {
		it.stepWithin()
	}
}
