package sstable

import "errors"

var (
	// ErrNotFound indicates a key was not present in the table.
	ErrNotFound = errors.New("sstable: key not found")
	// ErrCorruption indicates the on-disk representation failed a
	// structural or checksum check.
	ErrCorruption = errors.New("sstable: corruption detected")
	// ErrBadMagic indicates a file's footer magic did not match, i.e.
	// the file is not a table of this format at all.
	ErrBadMagic = errors.New("sstable: bad footer magic")
	// ErrChecksumMismatch indicates a block's stored CRC-32C did not
	// match the checksum recomputed over its contents.
	ErrChecksumMismatch = errors.New("sstable: checksum mismatch")
)
