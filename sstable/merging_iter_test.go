package sstable

import "testing"

// sliceIterator is a minimal in-memory Iterator over a sorted slice of
// key/value pairs, used only to exercise mergingIterator without
// needing a real table on disk.
type sliceIterator struct {
	pairs [][2]string
	pos   int // -1 before start, len(pairs) past end
}

func newSliceIterator(pairs [][2]string) *sliceIterator {
	return &sliceIterator{pairs: pairs, pos: -1}
}

func (s *sliceIterator) Valid() bool { return s.pos >= 0 && s.pos < len(s.pairs) }
func (s *sliceIterator) Key() []byte {
	if !s.Valid() {
		return nil
	}
	return []byte(s.pairs[s.pos][0])
}
func (s *sliceIterator) Value() []byte {
	if !s.Valid() {
		return nil
	}
	return []byte(s.pairs[s.pos][1])
}
func (s *sliceIterator) Error() error { return nil }
func (s *sliceIterator) SeekToFirst() { s.pos = 0 }
func (s *sliceIterator) SeekToLast()  { s.pos = len(s.pairs) - 1 }
func (s *sliceIterator) Next() {
	if s.pos < len(s.pairs) {
		s.pos++
	}
}
func (s *sliceIterator) Prev() {
	if s.pos >= 0 {
		s.pos--
	}
}
func (s *sliceIterator) Seek(target []byte) {
	t := string(target)
	for i, kv := range s.pairs {
		if kv[0] >= t {
			s.pos = i
			return
		}
	}
	s.pos = len(s.pairs)
}

func TestMergingIteratorForwardAndBackward(t *testing.T) {
	a := newSliceIterator([][2]string{{"a", "1"}, {"c", "3"}})
	b := newSliceIterator([][2]string{{"b", "2"}, {"d", "4"}})
	m := NewMergingIterator(BytewiseComparator, []Iterator{a, b})

	m.SeekToFirst()
	var forward []string
	for i := 0; i < 4; i++ {
		if !m.Valid() {
			t.Fatalf("expected valid at step %d", i)
		}
		forward = append(forward, string(m.Key()))
		m.Next()
	}
	want := []string{"a", "b", "c", "d"}
	for i := range want {
		if forward[i] != want[i] {
			t.Fatalf("forward[%d] = %q, want %q", i, forward[i], want[i])
		}
	}

	// From the end of forward iteration (now invalid), reseek to last
	// and walk backward via Prev twice, as E3 specifies.
	m.SeekToLast()
	if !m.Valid() || string(m.Key()) != "d" {
		t.Fatalf("SeekToLast: got %q, want d", m.Key())
	}
	m.Prev()
	if !m.Valid() || string(m.Key()) != "c" {
		t.Fatalf("Prev 1: got %q, want c", m.Key())
	}
	m.Prev()
	if !m.Valid() || string(m.Key()) != "b" {
		t.Fatalf("Prev 2: got %q, want b", m.Key())
	}
}

func TestMergingIteratorDirectionReversal(t *testing.T) {
	a := newSliceIterator([][2]string{{"a", "1"}, {"c", "3"}, {"e", "5"}})
	b := newSliceIterator([][2]string{{"b", "2"}, {"d", "4"}, {"f", "6"}})
	m := NewMergingIterator(BytewiseComparator, []Iterator{a, b})

	m.SeekToLast()
	var seen []string
	seen = append(seen, string(m.Key())) // "f", from SeekToLast
	for i := 0; i < 3; i++ {
		m.Prev()
		seen = append(seen, string(m.Key()))
	}
	// seen = f, e, d, c: the key at each point after SeekToLast and three
	// successive Prev calls.
	want := []string{"f", "e", "d", "c"}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
	// A single Next from here must return the successor of the last
	// Prev-visited key ("c"), i.e. "d".
	m.Next()
	if !m.Valid() || string(m.Key()) != "d" {
		t.Fatalf("Next after reversal: got %q, want d", m.Key())
	}
}

func TestMergingIteratorZeroAndOneChild(t *testing.T) {
	empty := NewMergingIterator(BytewiseComparator, nil)
	empty.SeekToFirst()
	if empty.Valid() {
		t.Fatal("zero-child merging iterator must never be valid")
	}

	only := newSliceIterator([][2]string{{"x", "1"}})
	single := NewMergingIterator(BytewiseComparator, []Iterator{only})
	if single != Iterator(only) {
		t.Fatal("single-child merge should return the child directly")
	}
}

func TestMergingIteratorDuplicatesPreserved(t *testing.T) {
	a := newSliceIterator([][2]string{{"a", "from-a"}})
	b := newSliceIterator([][2]string{{"a", "from-b"}})
	m := NewMergingIterator(BytewiseComparator, []Iterator{a, b})

	m.SeekToFirst()
	if !m.Valid() || string(m.Key()) != "a" {
		t.Fatalf("expected first key 'a', got %q", m.Key())
	}
	// Deterministic tie-break: lowest child index (a, index 0) wins.
	if string(m.Value()) != "from-a" {
		t.Fatalf("tie-break should favor lowest index child, got value %q", m.Value())
	}
	m.Next()
	if !m.Valid() || string(m.Key()) != "a" || string(m.Value()) != "from-b" {
		t.Fatalf("expected duplicate key preserved with second child's value, got %q=%q", m.Key(), m.Value())
	}
	m.Next()
	if m.Valid() {
		t.Fatal("expected end of merged stream after both duplicates")
	}
}
