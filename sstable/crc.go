package sstable

import "hash/crc32"

// castagnoliTable is the CRC-32C polynomial table. No third-party
// package in this module's dependency surface implements the masked
// CRC-32C framing the on-disk format requires (cockroachdb/pebble rolls
// its own small internal/crc helper for the identical reason); the
// standard library's Castagnoli table is the correct, minimal building
// block and is used the same way pebble's own checksum package does.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// crc32cMaskDelta is the additive constant used by the mask rotation.
const crc32cMaskDelta = 0xa282ead8

// maskCRC rotates and offsets a raw CRC-32C value so that it doesn't
// collide with the polynomial used to frame it on disk (the encoded CRC
// never looks like a valid unmasked checksum of its own bytes).
func maskCRC(c uint32) uint32 {
	return ((c >> 15) | (c << 17)) + crc32cMaskDelta
}

// unmaskCRC reverses maskCRC.
func unmaskCRC(masked uint32) uint32 {
	rot := masked - crc32cMaskDelta
	return (rot >> 17) | (rot << 15)
}

// crc32cValue computes the raw (unmasked) CRC-32C of data.
func crc32cValue(data []byte) uint32 {
	return crc32.Checksum(data, castagnoliTable)
}

// crc32cExtend extends an existing CRC-32C value to additionally cover
// more, used to fold the compression-type byte into the payload
// checksum without recomputing it from scratch.
func crc32cExtend(crc uint32, more []byte) uint32 {
	return crc32.Update(crc, castagnoliTable, more)
}
