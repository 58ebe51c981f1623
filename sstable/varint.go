package sstable

import (
	"encoding/binary"
	"fmt"
)

// putUvarint appends the unsigned varint encoding of v to buf and
// returns the extended slice. Used for every integer field inside a
// block record and a block handle.
func putUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// getUvarint decodes an unsigned varint from the front of data and
// returns the value and the number of bytes consumed. n == 0 indicates
// a truncated varint; n < 0 indicates one that overflows 64 bits.
func getUvarint(data []byte) (v uint64, n int) {
	return binary.Uvarint(data)
}

// errTruncatedVarint is returned wherever a varint field runs past the
// end of the available bytes.
var errTruncatedVarint = fmt.Errorf("%w: truncated varint", ErrCorruption)
