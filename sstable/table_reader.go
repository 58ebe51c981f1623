package sstable

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// Table is an open, immutable sorted-string table. Concurrent readers
// may construct independent iterators and call Get concurrently; the
// file mutex below only guards against a concurrent Close, not against
// ordinary concurrent reads, which os.File.ReadAt already supports.
type Table struct {
	opts *Options

	fileMu   sync.RWMutex
	file     *os.File
	fileSize int64

	cacheID uint64

	index  *block
	filter *filterBlockReader // nil if no filter was present/parseable
}

// Open opens the table file at path and parses its footer, index
// block, and (if present) filter block.
func Open(path string, opts *Options) (*Table, error) {
	if opts == nil {
		opts = NewOptions()
	} else {
		opts = opts.withDefaults()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening table file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stating table file: %w", err)
	}
	size := stat.Size()
	if size < footerSize {
		f.Close()
		return nil, fmt.Errorf("%w: table file is %d bytes, smaller than footer", ErrCorruption, size)
	}

	t := &Table{opts: opts, file: f, fileSize: size}
	// cache_id comes from the cache itself, the same way every table
	// sharing it agrees on a non-colliding key namespace (LevelDB's
	// Cache::NewId()); a table opened without a cache never builds a
	// cache key, so the field is simply left zero.
	if opts.BlockCache != nil {
		t.cacheID = opts.BlockCache.NewID()
	}

	footerBuf := make([]byte, footerSize)
	if _, err := f.ReadAt(footerBuf, size-footerSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	ft, err := decodeFooter(footerBuf)
	if err != nil {
		f.Close()
		return nil, err
	}

	indexContents, err := t.readBlock(ft.indexHandle)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reading index block: %w", err)
	}
	idx, err := newBlock(indexContents)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parsing index block: %w", err)
	}
	t.index = idx

	// A missing or unparseable metaindex/filter block is non-fatal: the
	// table simply opens without filter acceleration.
	if metaContents, err := t.readBlock(ft.metaindexHandle); err == nil {
		if metaBlock, err := newBlock(metaContents); err == nil {
			t.filter = t.loadFilter(metaBlock)
		}
	}

	return t, nil
}

func (t *Table) loadFilter(metaBlock *block) *filterBlockReader {
	if t.opts.FilterPolicy == nil {
		return nil
	}
	want := metaFilterPrefix + t.opts.FilterPolicy.Name()
	it := metaBlock.iterator(BytewiseComparator)
	for it.SeekToFirst(); it.Valid(); it.Next() {
		if string(it.Key()) != want {
			continue
		}
		handle, _, err := decodeBlockHandle(it.Value())
		if err != nil {
			return nil
		}
		contents, err := t.readBlock(handle)
		if err != nil {
			return nil
		}
		return newFilterBlockReader(t.opts.FilterPolicy, contents)
	}
	return nil
}

// readBlock reads, verifies (when VerifyChecksums or ParanoidChecks is
// set), and decompresses the block at handle. It
// never consults or populates the block cache: callers that want
// caching use readCachedBlock.
func (t *Table) readBlock(handle blockHandle) ([]byte, error) {
	buf := make([]byte, handle.size+5)
	t.fileMu.RLock()
	_, err := t.file.ReadAt(buf, int64(handle.offset))
	t.fileMu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("reading block at offset %d: %w", handle.offset, err)
	}

	payload := buf[:handle.size]
	tag := compressionType(buf[handle.size])
	storedCRC := unmaskCRC(le32At(buf[handle.size+1:]))

	if t.opts.VerifyChecksums || t.opts.ParanoidChecks {
		crc := crc32cValue(payload)
		crc = crc32cExtend(crc, buf[handle.size:handle.size+1])
		if crc != storedCRC {
			t.opts.Metrics.RecordCorruption(context.Background(), "checksum_mismatch")
			return nil, fmt.Errorf("%w: block at offset %d", ErrChecksumMismatch, handle.offset)
		}
	}

	return decompress(tag, payload)
}

// cacheKey builds the block-cache key for a block at handle within
// this table: cache_id (8 bytes) || handle.offset (8 bytes).
func (t *Table) cacheKey(handle blockHandle) string {
	var buf [16]byte
	putLE64At(buf[:8], t.cacheID)
	putLE64At(buf[8:], handle.offset)
	return string(buf[:])
}

// readCachedBlock returns a parsed block for handle, consulting the
// block cache first. The returned release func must be called exactly
// once when the block is no longer needed.
func (t *Table) readCachedBlock(handle blockHandle) (*block, func(), error) {
	if t.opts.BlockCache == nil {
		contents, err := t.readBlock(handle)
		if err != nil {
			return nil, nil, err
		}
		blk, err := newBlock(contents)
		if err != nil {
			return nil, nil, err
		}
		return blk, func() {}, nil
	}

	key := t.cacheKey(handle)
	c := t.opts.BlockCache
	if h := c.Lookup(key); h.Valid() {
		blk, _ := c.Value(h).(*block)
		return blk, func() { c.Release(h) }, nil
	}

	contents, err := t.readBlock(handle)
	if err != nil {
		return nil, nil, err
	}
	blk, err := newBlock(contents)
	if err != nil {
		return nil, nil, err
	}
	h := c.Insert(key, blk, int64(len(contents)), func(string, any) {})
	return blk, func() { c.Release(h) }, nil
}

// Get returns the value stored for key, or ErrNotFound if no such key
// exists in the table.
func (t *Table) Get(key []byte) ([]byte, error) {
	start := time.Now()
	cmp := t.opts.Comparator

	indexIter := t.index.iterator(cmp)
	indexIter.Seek(key)
	if !indexIter.Valid() {
		t.opts.Metrics.RecordGet(context.Background(), time.Since(start), false, false)
		return nil, ErrNotFound
	}

	handle, _, err := decodeBlockHandle(indexIter.Value())
	if err != nil {
		return nil, fmt.Errorf("decoding index entry: %w", err)
	}

	if t.filter != nil && !t.filter.keyMayMatch(handle.offset, key) {
		t.opts.Metrics.RecordGet(context.Background(), time.Since(start), false, true)
		return nil, ErrNotFound
	}

	blk, release, err := t.readCachedBlock(handle)
	if err != nil {
		return nil, err
	}
	defer release()

	dataIter := blk.iterator(cmp)
	dataIter.Seek(key)
	if dataIter.Valid() && cmp.Compare(dataIter.Key(), key) == 0 {
		value := append([]byte(nil), dataIter.Value()...)
		t.opts.Metrics.RecordGet(context.Background(), time.Since(start), true, false)
		return value, nil
	}
	t.opts.Metrics.RecordGet(context.Background(), time.Since(start), false, false)
	return nil, ErrNotFound
}

// NewIterator returns a two-level iterator over the whole table: the
// first level walks the index block, lazily opening each data block in
// turn as the second level.
func (t *Table) NewIterator() Iterator {
	if len(t.index.data) == 0 {
		return newEmptyIterator(nil)
	}
	return &twoLevelIterator{table: t, index: t.index.iterator(t.opts.Comparator)}
}

// Close releases the underlying file handle. Any outstanding Handles
// into the block cache remain valid; the cache owns that memory
// independently of the table.
func (t *Table) Close() error {
	t.fileMu.Lock()
	defer t.fileMu.Unlock()
	return t.file.Close()
}

// twoLevelIterator walks the index block as its first level, lazily
// materializing a blockIter over the indexed data block as its second
// level.
type twoLevelIterator struct {
	table *Table
	index *blockIter

	dataHandle blockHandle
	dataValid  bool
	data       *blockIter
	release    func()

	err error
}

func (it *twoLevelIterator) Error() error {
	if it.err != nil {
		return it.err
	}
	if it.data != nil {
		return it.data.Error()
	}
	return it.index.Error()
}

func (it *twoLevelIterator) Valid() bool {
	return it.err == nil && it.dataValid && it.data != nil && it.data.Valid()
}

func (it *twoLevelIterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.data.Key()
}

func (it *twoLevelIterator) Value() []byte {
	if !it.Valid() {
		return nil
	}
	return it.data.Value()
}

// setDataIter opens the data block referenced by the index iterator's
// current value, releasing any previously open block first. It is a
// no-op if the index iterator is already positioned at the handle
// whose block is open.
func (it *twoLevelIterator) setDataIter() bool {
	if !it.index.Valid() {
		it.releaseData()
		return false
	}
	handle, _, err := decodeBlockHandle(it.index.Value())
	if err != nil {
		it.err = fmt.Errorf("decoding index entry: %w", err)
		it.releaseData()
		return false
	}
	if it.data != nil && it.dataHandle == handle {
		return true
	}

	it.releaseData()
	blk, release, err := it.table.readCachedBlock(handle)
	if err != nil {
		it.err = err
		return false
	}
	it.dataHandle = handle
	it.data = blk.iterator(it.table.opts.Comparator)
	it.release = release
	return true
}

func (it *twoLevelIterator) releaseData() {
	if it.release != nil {
		it.release()
		it.release = nil
	}
	it.data = nil
	it.dataValid = false
}

// skipEmptyForward advances the index iterator until it finds a data
// block with at least one record, or runs out.
func (it *twoLevelIterator) skipEmptyForward() {
	for {
		if !it.setDataIter() {
			it.dataValid = false
			return
		}
		it.data.SeekToFirst()
		if it.data.Valid() {
			it.dataValid = true
			return
		}
		it.index.Next()
		if !it.index.Valid() {
			it.dataValid = false
			return
		}
	}
}

func (it *twoLevelIterator) skipEmptyBackward() {
	for {
		if !it.setDataIter() {
			it.dataValid = false
			return
		}
		it.data.SeekToLast()
		if it.data.Valid() {
			it.dataValid = true
			return
		}
		it.index.Prev()
		if !it.index.Valid() {
			it.dataValid = false
			return
		}
	}
}

func (it *twoLevelIterator) SeekToFirst() {
	it.index.SeekToFirst()
	it.skipEmptyForward()
}

func (it *twoLevelIterator) SeekToLast() {
	it.index.SeekToLast()
	it.skipEmptyBackward()
}

func (it *twoLevelIterator) Seek(target []byte) {
	it.index.Seek(target)
	if !it.setDataIter() {
		it.dataValid = false
		return
	}
	it.data.Seek(target)
	if it.data.Valid() {
		it.dataValid = true
		return
	}
	it.index.Next()
	it.skipEmptyForward()
}

func (it *twoLevelIterator) Next() {
	if !it.Valid() {
		return
	}
	it.data.Next()
	if it.data.Valid() {
		return
	}
	it.index.Next()
	it.skipEmptyForward()
}

func (it *twoLevelIterator) Prev() {
	if !it.Valid() {
		return
	}
	it.data.Prev()
	if it.data.Valid() {
		return
	}
	it.index.Prev()
	it.skipEmptyBackward()
}

func le32At(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLE64At(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[i] = byte(v >> (8 * i))
	}
}
