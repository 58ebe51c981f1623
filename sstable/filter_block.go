package sstable

import "encoding/binary"

// filterBaseLg is the log2 of the byte stride between successive
// filters: a new filter covers every 2 KiB (1 << 11) of data-block
// region.
const filterBaseLg = 11

// filterBase is 2^filterBaseLg, i.e. 2048.
const filterBase = 1 << filterBaseLg

// filterBlockBuilder accumulates the keys added since the last emitted
// filter, invoking the FilterPolicy once per filterBase stride of
// data-block offsets. The sequence of calls must match
// (StartBlock AddKey*)* Finish.
type filterBlockBuilder struct {
	policy FilterPolicy

	keys  []byte   // Flattened key bytes, current filter's keys only.
	start []int    // Starting offset in keys of each key.

	result        []byte // Concatenated filter payloads, one per stride.
	filterOffsets []uint32
	tmpKeys       [][]byte // Scratch, reused by generateFilter.
}

func newFilterBlockBuilder(policy FilterPolicy) *filterBlockBuilder {
	return &filterBlockBuilder{policy: policy}
}

// addKey records a key for the filter currently being accumulated.
func (b *filterBlockBuilder) addKey(key []byte) {
	b.start = append(b.start, len(b.keys))
	b.keys = append(b.keys, key...)
}

// startBlock is called with the file offset a new data block will be
// written at. It emits filters (possibly zero, one, or several,
// including empty ones for strides with no data) so that after the
// call, len(filterOffsets) == offset >> filterBaseLg.
func (b *filterBlockBuilder) startBlock(blockOffset uint64) {
	index := blockOffset >> filterBaseLg
	for index > uint64(len(b.filterOffsets)) {
		b.generateFilter()
	}
}

func (b *filterBlockBuilder) generateFilter() {
	numKeys := len(b.start)
	if numKeys == 0 {
		// No keys since the last filter: record an empty filter for this
		// stride so offsets stay aligned with strides.
		b.filterOffsets = append(b.filterOffsets, uint32(len(b.result)))
		return
	}

	b.start = append(b.start, len(b.keys)) // sentinel, simplifies length math
	b.tmpKeys = b.tmpKeys[:0]
	for i := 0; i < numKeys; i++ {
		b.tmpKeys = append(b.tmpKeys, b.keys[b.start[i]:b.start[i+1]])
	}

	b.filterOffsets = append(b.filterOffsets, uint32(len(b.result)))
	b.result = append(b.result, b.policy.CreateFilter(b.tmpKeys)...)

	b.tmpKeys = b.tmpKeys[:0]
	b.keys = b.keys[:0]
	b.start = b.start[:0]
}

// finish flushes any pending filter and appends the offset array,
// offset-array start, and base_lg trailer, returning the full filter
// block payload.
func (b *filterBlockBuilder) finish() []byte {
	if len(b.start) > 0 {
		b.generateFilter()
	}

	arrayOffset := uint32(len(b.result))
	for _, off := range b.filterOffsets {
		b.result = le32(b.result, off)
	}
	b.result = le32(b.result, arrayOffset)
	b.result = append(b.result, byte(filterBaseLg))
	return b.result
}

// filterBlockReader answers KeyMayMatch queries against a parsed filter
// block. A reader with num == 0 (malformed or absent filter data) always
// answers true — a missing or unparseable filter block is non-fatal and
// degrades to "consult the data block directly".
type filterBlockReader struct {
	policy FilterPolicy
	data   []byte // Filter payloads, up to the offset array.
	offset []byte // Raw offset array.
	num    int
	baseLg uint
}

// newFilterBlockReader parses contents produced by
// filterBlockBuilder.finish. Malformed contents (too short, or an
// offset-array start past the end of the data) yield a reader with
// num == 0, which fails open on every query rather than returning an
// error: a broken filter block must never make the table unreadable.
func newFilterBlockReader(policy FilterPolicy, contents []byte) *filterBlockReader {
	n := len(contents)
	if n < 5 {
		return &filterBlockReader{policy: policy}
	}
	baseLg := uint(contents[n-1])
	arrayStart := binary.LittleEndian.Uint32(contents[n-5:])
	if uint64(arrayStart) > uint64(n-5) {
		return &filterBlockReader{policy: policy}
	}
	num := (n - 5 - int(arrayStart)) / 4
	return &filterBlockReader{
		policy: policy,
		data:   contents,
		offset: contents[arrayStart:],
		num:    num,
		baseLg: baseLg,
	}
}

// keyMayMatch reports whether key might be present in a data block
// starting at blockOffset. False positives are allowed; false negatives
// are not, except that this method fails open (returns true) on any
// internal inconsistency, per the documented filter-block trade-off.
func (r *filterBlockReader) keyMayMatch(blockOffset uint64, key []byte) bool {
	if r.num == 0 {
		return true
	}
	index := blockOffset >> r.baseLg
	if index >= uint64(r.num) {
		return true
	}
	start := binary.LittleEndian.Uint32(r.offset[4*index:])
	limit := binary.LittleEndian.Uint32(r.offset[4*index+4:])
	if start > limit || uint64(limit) > uint64(len(r.data)-len(r.offset)) {
		return true
	}
	if start == limit {
		return false
	}
	return r.policy.KeyMayMatch(key, r.data[start:limit])
}
