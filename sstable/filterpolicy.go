package sstable

// FilterPolicy generates and consults approximate-membership filters for
// the keys inside each filterBase-byte stride of data blocks. A policy
// need not be cryptographically strong; false positives are expected
// and tolerated, false negatives are not (except as described for a
// malformed or absent filter block).
type FilterPolicy interface {
	// Name identifies the encoding CreateFilter produces. It is stored
	// in the metaindex block as "filter.<Name>" so a reader opening the
	// table with a different or absent policy can detect the mismatch
	// and fall back to not using the filter at all.
	Name() string

	// CreateFilter builds a filter payload covering exactly the given
	// keys, already sorted in ascending order by the table's
	// comparator.
	CreateFilter(keys [][]byte) []byte

	// KeyMayMatch reports whether key might be a member of the set
	// that produced filter. False positives are acceptable; false
	// negatives are not.
	KeyMayMatch(key, filter []byte) bool
}
