package sstable

// direction tracks which way a mergingIterator last moved, since Next
// and Prev must first reposition every non-current child to restore
// the invariant the other direction relies on.
type direction int

const (
	forward direction = iota
	reverse
)

// mergingIterator is the k-way ordered merge of n child iterators. It
// preserves duplicate keys across children rather than deduping them;
// callers that need deduplication (e.g. a compactor merging levels)
// apply that on top.
//
// Ties between children holding equal keys are broken deterministically
// in favor of the lowest-indexed child, matching both FindSmallest and
// FindLargest below. No other ordering among tied children is
// guaranteed or should be relied upon.
type mergingIterator struct {
	cmp      Comparator
	children []Iterator
	current  int // index into children, or -1 if none is valid
	dir      direction
	err      error
}

// NewMergingIterator returns the ordered merge of children under cmp.
// For zero children it returns an iterator that is always invalid; for
// exactly one, it returns that child directly without wrapping.
func NewMergingIterator(cmp Comparator, children []Iterator) Iterator {
	switch len(children) {
	case 0:
		return newEmptyIterator(nil)
	case 1:
		return children[0]
	}
	return &mergingIterator{cmp: cmp, children: children, current: -1}
}

func (it *mergingIterator) Valid() bool { return it.current >= 0 && it.Error() == nil }

func (it *mergingIterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.children[it.current].Key()
}

func (it *mergingIterator) Value() []byte {
	if !it.Valid() {
		return nil
	}
	return it.children[it.current].Value()
}

func (it *mergingIterator) Error() error {
	if it.err != nil {
		return it.err
	}
	for _, c := range it.children {
		if err := c.Error(); err != nil {
			return err
		}
	}
	return nil
}

func (it *mergingIterator) SeekToFirst() {
	for _, c := range it.children {
		c.SeekToFirst()
	}
	it.findSmallest()
	it.dir = forward
}

func (it *mergingIterator) SeekToLast() {
	for _, c := range it.children {
		c.SeekToLast()
	}
	it.findLargest()
	it.dir = reverse
}

func (it *mergingIterator) Seek(target []byte) {
	for _, c := range it.children {
		c.Seek(target)
	}
	it.findSmallest()
	it.dir = forward
}

func (it *mergingIterator) Next() {
	if !it.Valid() {
		return
	}

	if it.dir != forward {
		// Every non-current child was left positioned before key(); bring
		// each up to the first entry >= key(), stepping once more past an
		// exact match so none of them sit ON the current key.
		key := it.Key()
		for i, c := range it.children {
			if i == it.current {
				continue
			}
			c.Seek(key)
			if c.Valid() && it.cmp.Compare(key, c.Key()) == 0 {
				c.Next()
			}
		}
		it.dir = forward
	}

	it.children[it.current].Next()
	it.findSmallest()
}

func (it *mergingIterator) Prev() {
	if !it.Valid() {
		return
	}

	if it.dir != reverse {
		key := it.Key()
		for i, c := range it.children {
			if i == it.current {
				continue
			}
			c.Seek(key)
			if c.Valid() {
				c.Prev()
			} else {
				c.SeekToLast()
			}
		}
		it.dir = reverse
	}

	it.children[it.current].Prev()
	it.findLargest()
}

// findSmallest sets current to the lowest-indexed child holding the
// smallest valid key, or -1 if none are valid.
func (it *mergingIterator) findSmallest() {
	smallest := -1
	for i, c := range it.children {
		if !c.Valid() {
			continue
		}
		if smallest == -1 || it.cmp.Compare(c.Key(), it.children[smallest].Key()) < 0 {
			smallest = i
		}
	}
	it.current = smallest
}

// findLargest sets current to the lowest-indexed child holding the
// largest valid key, or -1 if none are valid. Scanning backward and
// replacing on greater-than-or-equal means a tie resolves to the
// lower index, the same tie-break findSmallest uses.
func (it *mergingIterator) findLargest() {
	largest := -1
	for i := len(it.children) - 1; i >= 0; i-- {
		c := it.children[i]
		if !c.Valid() {
			continue
		}
		if largest == -1 || it.cmp.Compare(c.Key(), it.children[largest].Key()) >= 0 {
			largest = i
		}
	}
	it.current = largest
}
