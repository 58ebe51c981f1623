package sstable

import (
	"encoding/binary"
	"fmt"
)

// tableMagic is the fixed 8-byte constant at the end of every table
// file's footer, used to reject files that aren't tables of this
// format.
const tableMagic uint64 = 0xdb4775248b80fb57

// footerSize is the fixed, padded size of the footer: two block handles
// (each at most 20 bytes when varint-encoded and zero-padded) followed
// by the 8-byte magic.
const footerSize = 2*maxHandleEncodedLen + 8

// maxHandleEncodedLen is the maximum size of a varint-encoded
// blockHandle: two uint64 varints, 10 bytes each in the worst case.
const maxHandleEncodedLen = 2 * binary.MaxVarintLen64

// blockHandle points at a block's payload within a table file. It does
// not include the block's 5-byte trailer.
type blockHandle struct {
	offset uint64
	size   uint64
}

// encode appends the varint encoding of h to dst.
func (h blockHandle) encode(dst []byte) []byte {
	dst = putUvarint(dst, h.offset)
	dst = putUvarint(dst, h.size)
	return dst
}

// decodeBlockHandle parses a blockHandle from the front of data,
// returning the handle and the number of bytes consumed.
func decodeBlockHandle(data []byte) (blockHandle, int, error) {
	offset, n1 := getUvarint(data)
	if n1 <= 0 {
		return blockHandle{}, 0, errTruncatedVarint
	}
	size, n2 := getUvarint(data[n1:])
	if n2 <= 0 {
		return blockHandle{}, 0, errTruncatedVarint
	}
	return blockHandle{offset: offset, size: size}, n1 + n2, nil
}

// footer is the fixed 48-byte trailer of a table file, locating the
// metaindex and index blocks.
type footer struct {
	metaindexHandle blockHandle
	indexHandle     blockHandle
}

// encode returns the exact footerSize-byte encoding of f: the two
// handles, zero-padded, followed by the magic number.
func (f footer) encode() []byte {
	buf := make([]byte, 0, footerSize)
	buf = f.metaindexHandle.encode(buf)
	buf = f.indexHandle.encode(buf)
	if len(buf) > 2*maxHandleEncodedLen {
		panic("sstable: encoded handles exceed footer padding")
	}
	padded := make([]byte, footerSize)
	copy(padded, buf)
	binary.LittleEndian.PutUint64(padded[footerSize-8:], tableMagic)
	return padded
}

// decodeFooter parses a footer from exactly footerSize bytes.
func decodeFooter(data []byte) (footer, error) {
	if len(data) != footerSize {
		return footer{}, fmt.Errorf("%w: footer is %d bytes, want %d", ErrCorruption, len(data), footerSize)
	}
	magic := binary.LittleEndian.Uint64(data[footerSize-8:])
	if magic != tableMagic {
		return footer{}, fmt.Errorf("%w: %x", ErrBadMagic, magic)
	}

	rest := data[:footerSize-8]
	metaindexHandle, n, err := decodeBlockHandle(rest)
	if err != nil {
		return footer{}, fmt.Errorf("%w: decoding metaindex handle: %v", ErrCorruption, err)
	}
	rest = rest[n:]
	indexHandle, _, err := decodeBlockHandle(rest)
	if err != nil {
		return footer{}, fmt.Errorf("%w: decoding index handle: %v", ErrCorruption, err)
	}
	return footer{metaindexHandle: metaindexHandle, indexHandle: indexHandle}, nil
}
