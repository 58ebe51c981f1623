package sstable

// Iterator is the capability set shared by every ordered cursor in this
// package: block iterators, the two-level table iterator, and the
// merging iterator. None of them use inheritance; they all just
// implement this interface.
type Iterator interface {
	// Valid returns true iff the iterator is positioned at a key/value
	// pair.
	Valid() bool

	// SeekToFirst positions the iterator at the first entry.
	SeekToFirst()

	// SeekToLast positions the iterator at the last entry.
	SeekToLast()

	// Seek positions the iterator at the first entry whose key is >=
	// target.
	Seek(target []byte)

	// Next moves to the next entry. Only valid to call when Valid().
	Next()

	// Prev moves to the previous entry. Only valid to call when Valid().
	Prev()

	// Key returns the key at the current position. Only valid to call
	// when Valid(). The returned slice is only valid until the next
	// iterator movement.
	Key() []byte

	// Value returns the value at the current position. Only valid to
	// call when Valid(). The returned slice is only valid until the next
	// iterator movement.
	Value() []byte

	// Error returns the first error encountered by the iterator, if any.
	// Once non-nil, the iterator is invalid and further movement is a
	// no-op.
	Error() error
}

// emptyIterator is an Iterator that is always invalid. It is returned
// wherever a component would otherwise have to hand out a nil Iterator,
// e.g. a merging iterator over zero children, or a table with no index
// entries.
type emptyIterator struct {
	err error
}

func newEmptyIterator(err error) *emptyIterator { return &emptyIterator{err: err} }

func (e *emptyIterator) Valid() bool      { return false }
func (e *emptyIterator) SeekToFirst()     {}
func (e *emptyIterator) SeekToLast()      {}
func (e *emptyIterator) Seek(_ []byte)    {}
func (e *emptyIterator) Next()            {}
func (e *emptyIterator) Prev()            {}
func (e *emptyIterator) Key() []byte      { return nil }
func (e *emptyIterator) Value() []byte    { return nil }
func (e *emptyIterator) Error() error     { return e.err }
