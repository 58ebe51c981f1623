// Package bloom implements the classic per-stride LevelDB Bloom filter
// encoding: one []byte payload per filter, probe count stored in its
// trailing byte. This is deliberately the "one filter per call" format
// rather than pebble's newer cache-line-blocked whole-file encoding,
// since the table format here calls FilterPolicy once per
// filterBase-byte stride rather than once per file.
package bloom

import "github.com/cespare/xxhash/v2"

// Policy is a FilterPolicy producing Bloom filters with bitsPerKey bits
// of filter state per key added.
type Policy struct {
	bitsPerKey int
	k          uint32 // Number of hash probes per key.
}

// New returns a Policy using bitsPerKey bits per key. 10 bits per key
// yields an approximate 1% false positive rate, matching the classic
// LevelDB recommendation.
func New(bitsPerKey int) *Policy {
	if bitsPerKey < 0 {
		bitsPerKey = 0
	}
	k := uint32(float64(bitsPerKey) * 0.69) // ln(2)
	if k < 1 {
		k = 1
	}
	if k > 30 {
		k = 30
	}
	return &Policy{bitsPerKey: bitsPerKey, k: k}
}

func (p *Policy) Name() string { return "leveldb.BuiltinBloomFilter" }

// CreateFilter builds one Bloom filter payload covering every key in
// keys. The trailing byte records the probe count so KeyMayMatch (and
// any future encoding revision) can recover it without out-of-band
// state.
func (p *Policy) CreateFilter(keys [][]byte) []byte {
	nBits := len(keys) * p.bitsPerKey
	if nBits < 64 {
		nBits = 64 // Tiny filters have unacceptably high false-positive rates.
	}
	nBytes := (nBits + 7) / 8
	nBits = nBytes * 8

	buf := make([]byte, nBytes+1)
	for _, key := range keys {
		h := hash(key)
		delta := h>>17 | h<<15 // Rotate, per Kirsch-Mitzenmacher double hashing.
		for j := uint32(0); j < p.k; j++ {
			bitPos := h % uint32(nBits)
			buf[bitPos/8] |= 1 << (bitPos % 8)
			h += delta
		}
	}
	buf[nBytes] = byte(p.k)
	return buf
}

// KeyMayMatch reports whether key may have been a member of the set
// filter was built from.
func (p *Policy) KeyMayMatch(key, filter []byte) bool {
	if len(filter) < 2 {
		return false
	}
	k := filter[len(filter)-1]
	if k > 30 {
		// Reserved for a future short-filter encoding; treat as a match
		// rather than risk a false negative against an encoding we
		// don't understand.
		return true
	}
	nBits := uint32(8 * (len(filter) - 1))
	h := hash(key)
	delta := h>>17 | h<<15
	for j := uint8(0); j < k; j++ {
		bitPos := h % nBits
		if filter[bitPos/8]&(1<<(bitPos%8)) == 0 {
			return false
		}
		h += delta
	}
	return true
}

// hash returns a 32-bit digest of b: xxhash64 truncated to 32 bits,
// which makes a fast, well-distributed Bloom probe hash without
// carrying a Murmur-style hash implementation for this one call site.
func hash(b []byte) uint32 {
	return uint32(xxhash.Sum64(b))
}
