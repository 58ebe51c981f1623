package sstable

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KevoDB/kevo/pkg/common/log"
)

// metaFilterPrefix prefixes a FilterPolicy's Name in the metaindex
// block, the well-known key a reader looks for to recover the filter
// block.
const metaFilterPrefix = "filter."

// fileWriter owns the temp-file-then-rename lifecycle of a table under
// construction: build under a hidden name, fsync, then atomically
// publish by rename.
type fileWriter struct {
	finalPath string
	tmpPath   string
	file      *os.File
	offset    uint64
}

func newFileWriter(path string) (*fileWriter, error) {
	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.tmp", filepath.Base(path)))
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("creating temporary table file: %w", err)
	}
	return &fileWriter{finalPath: path, tmpPath: tmpPath, file: f}, nil
}

func (w *fileWriter) append(data []byte) error {
	n, err := w.file.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("short write: wrote %d of %d bytes", n, len(data))
	}
	w.offset += uint64(n)
	return nil
}

func (w *fileWriter) finalize() error {
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("syncing table file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing table file: %w", err)
	}
	return os.Rename(w.tmpPath, w.finalPath)
}

func (w *fileWriter) abandon() error {
	w.file.Close()
	return os.Remove(w.tmpPath)
}

// TableBuilder streams strictly-increasing key/value pairs into a new
// table file, emitting data blocks, an optional filter block, a
// metaindex block, an index block, and the trailing footer.
//
// A TableBuilder must be used by a single goroutine; Add, Flush and
// Finish are not safe to call concurrently with each other.
type TableBuilder struct {
	opts *Options
	log  log.Logger

	file *fileWriter

	dataBlock  *blockBuilder
	indexBlock *blockBuilder
	filter     *filterBlockBuilder

	lastKey            []byte
	pendingIndexEntry  bool
	pendingHandle      blockHandle

	numEntries int
	closed     bool

	compressionScratch []byte
}

// NewTableBuilder creates a builder writing a new table at path. opts
// may be nil, in which case NewOptions defaults apply; a non-nil
// Options is completed via withDefaults so a caller can supply a
// partial literal.
func NewTableBuilder(path string, opts *Options) (*TableBuilder, error) {
	if opts == nil {
		opts = NewOptions()
	} else {
		opts = opts.withDefaults()
	}

	file, err := newFileWriter(path)
	if err != nil {
		return nil, err
	}

	b := &TableBuilder{
		opts:       opts,
		log:        log.GetDefaultLogger().WithField("component", "sstable.builder"),
		file:       file,
		dataBlock:  newBlockBuilder(opts.BlockRestartInterval),
		indexBlock: newBlockBuilder(1),
	}
	if opts.FilterPolicy != nil {
		b.filter = newFilterBlockBuilder(opts.FilterPolicy)
		b.filter.startBlock(0)
	}
	return b, nil
}

// Add appends a key/value pair. key must compare strictly greater than
// every previously added key.
func (b *TableBuilder) Add(key, value []byte) error {
	if b.closed {
		return fmt.Errorf("sstable: Add called after Finish/Abandon")
	}
	if b.numEntries > 0 && b.opts.Comparator.Compare(key, b.lastKey) <= 0 {
		return fmt.Errorf("%w: key %q out of order after %q", ErrCorruption, key, b.lastKey)
	}

	if b.pendingIndexEntry {
		sep := b.opts.Comparator.FindShortestSeparator(b.lastKey, key)
		var handleBuf []byte
		handleBuf = b.pendingHandle.encode(handleBuf)
		b.indexBlock.add(sep, handleBuf)
		b.pendingIndexEntry = false
	}

	if b.filter != nil {
		b.filter.addKey(key)
	}

	b.lastKey = append(b.lastKey[:0], key...)
	b.numEntries++
	b.dataBlock.add(key, value)

	if b.dataBlock.currentSizeEstimate() >= b.opts.BlockSize {
		if err := b.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Flush forces the current data block to be written out immediately,
// even if it hasn't reached BlockSize. It is a no-op if the data block
// is empty.
func (b *TableBuilder) Flush() error {
	if b.dataBlock.empty() {
		return nil
	}
	if b.pendingIndexEntry {
		return fmt.Errorf("sstable: Flush called with a pending index entry")
	}

	handle, err := b.writeBlock(b.dataBlock)
	if err != nil {
		return err
	}
	b.pendingHandle = handle
	b.pendingIndexEntry = true
	if b.filter != nil {
		b.filter.startBlock(b.file.offset)
	}
	return nil
}

// writeBlock finishes block, applies compression if the result is
// smaller by at least 12.5%, and writes it out with its trailer.
func (b *TableBuilder) writeBlock(block *blockBuilder) (blockHandle, error) {
	start := time.Now()
	raw := block.finish()

	contents := raw
	tag := compressionNone
	if b.opts.Compression != NoCompression {
		compressed, ctag, err := compress(b.opts.Compression, raw, b.compressionScratch)
		if err != nil {
			return blockHandle{}, fmt.Errorf("compressing block: %w", err)
		}
		b.compressionScratch = compressed[:0]
		if len(compressed) < len(raw)-len(raw)/8 {
			contents = compressed
			tag = ctag
		}
	}

	handle, err := b.writeRawBlock(contents, tag)
	if err != nil {
		return blockHandle{}, err
	}
	b.opts.Metrics.RecordFlush(context.Background(), time.Since(start), len(raw), len(contents), tag != compressionNone)

	block.reset()
	return handle, nil
}

// writeRawBlock writes contents verbatim (already compressed, or
// intentionally never compressed, e.g. the filter block) along
// with its 5-byte trailer, and returns a handle describing it.
func (b *TableBuilder) writeRawBlock(contents []byte, tag compressionType) (blockHandle, error) {
	handle := blockHandle{offset: b.file.offset, size: uint64(len(contents))}

	if err := b.file.append(contents); err != nil {
		return blockHandle{}, fmt.Errorf("writing block: %w", err)
	}

	crc := crc32cValue(contents)
	crc = crc32cExtend(crc, []byte{byte(tag)})

	trailer := make([]byte, 5)
	trailer[0] = byte(tag)
	putLE32At(trailer[1:], maskCRC(crc))
	if err := b.file.append(trailer); err != nil {
		return blockHandle{}, fmt.Errorf("writing block trailer: %w", err)
	}

	return handle, nil
}

// Finish flushes any pending data block, writes the filter, metaindex,
// and index blocks, appends the footer, and atomically publishes the
// file. The builder must not be used again afterward.
func (b *TableBuilder) Finish() error {
	if b.closed {
		return fmt.Errorf("sstable: Finish called twice")
	}
	start := time.Now()

	if err := b.Flush(); err != nil {
		return err
	}
	b.closed = true

	var filterHandle blockHandle
	haveFilter := b.filter != nil
	if haveFilter {
		h, err := b.writeRawBlock(b.filter.finish(), compressionNone)
		if err != nil {
			return fmt.Errorf("writing filter block: %w", err)
		}
		filterHandle = h
	}

	metaindex := newBlockBuilder(1)
	if haveFilter {
		var handleBuf []byte
		handleBuf = filterHandle.encode(handleBuf)
		metaindex.add([]byte(metaFilterPrefix+b.opts.FilterPolicy.Name()), handleBuf)
	}
	metaindexHandle, err := b.writeBlock(metaindex)
	if err != nil {
		return fmt.Errorf("writing metaindex block: %w", err)
	}

	if b.pendingIndexEntry {
		succ := b.opts.Comparator.FindShortSuccessor(b.lastKey)
		var handleBuf []byte
		handleBuf = b.pendingHandle.encode(handleBuf)
		b.indexBlock.add(succ, handleBuf)
		b.pendingIndexEntry = false
	}
	indexHandle, err := b.writeBlock(b.indexBlock)
	if err != nil {
		return fmt.Errorf("writing index block: %w", err)
	}

	ft := footer{metaindexHandle: metaindexHandle, indexHandle: indexHandle}
	if err := b.file.append(ft.encode()); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}

	if err := b.file.finalize(); err != nil {
		return fmt.Errorf("finalizing table file: %w", err)
	}

	b.opts.Metrics.RecordBuild(context.Background(), time.Since(start), int64(b.file.offset), b.numEntries)
	b.log.Debug("table build finished", "entries", b.numEntries, "bytes", b.file.offset)
	return nil
}

// Abandon discards the partially written file without finalizing it.
// The builder must not be used again afterward.
func (b *TableBuilder) Abandon() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.file.abandon()
}

// NumEntries returns the number of key/value pairs added so far.
func (b *TableBuilder) NumEntries() int { return b.numEntries }

// FileSize returns the number of bytes written to the underlying file
// so far (not counting data still buffered in the current block).
func (b *TableBuilder) FileSize() uint64 { return b.file.offset }

func putLE32At(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}
