package sstable

import "testing"

// alwaysTrueFilterPolicy is used to exercise the filter-block framing
// itself (offsets, base_lg, fail-open paths) independent of any real
// probabilistic filter's false-positive behavior.
type alwaysTrueFilterPolicy struct{}

func (alwaysTrueFilterPolicy) Name() string { return "test.AlwaysTrue" }
func (alwaysTrueFilterPolicy) CreateFilter(keys [][]byte) []byte {
	return []byte{1}
}
func (alwaysTrueFilterPolicy) KeyMayMatch(key, filter []byte) bool {
	return len(filter) > 0 && filter[0] == 1
}

func TestFilterBlockBasic(t *testing.T) {
	b := newFilterBlockBuilder(alwaysTrueFilterPolicy{})
	b.startBlock(0)
	b.addKey([]byte("foo"))
	b.addKey([]byte("bar"))
	b.startBlock(2000) // still stride 0 (base 2048)
	b.addKey([]byte("box"))
	b.startBlock(3100) // stride 1
	b.addKey([]byte("box"))
	b.startBlock(9000) // far stride: emits empty filters in between
	contents := b.finish()

	r := newFilterBlockReader(alwaysTrueFilterPolicy{}, contents)
	if !r.keyMayMatch(0, []byte("foo")) {
		t.Error("expected match for key in stride 0")
	}
	if !r.keyMayMatch(2000, []byte("foo")) {
		t.Error("expected match for key in stride 0 at offset 2000")
	}
	if !r.keyMayMatch(3100, []byte("box")) {
		t.Error("expected match for key in stride 1")
	}
	// Stride 2 (4096..6143) had no AddKey calls before the jump to stride 4:
	// it must be an empty filter, a hard no-match, not fail-open.
	if r.keyMayMatch(4096, []byte("anything")) {
		t.Error("expected no-match for empty stride")
	}
	// Offset past every emitted filter must fail open.
	if !r.keyMayMatch(1<<20, []byte("anything")) {
		t.Error("expected fail-open for out-of-range offset")
	}
}

func TestFilterBlockMalformedFailsOpen(t *testing.T) {
	r := newFilterBlockReader(alwaysTrueFilterPolicy{}, []byte{1, 2})
	if !r.keyMayMatch(0, []byte("x")) {
		t.Error("malformed (too-short) filter block must fail open")
	}

	// A well-formed trailer whose offsets_start points past the data must
	// also fail open rather than panic or hard-reject.
	bogus := []byte{100, 0, 0, 0, 11} // offsets_start = 100 (LE), way past len
	r2 := newFilterBlockReader(alwaysTrueFilterPolicy{}, bogus)
	if !r2.keyMayMatch(0, []byte("x")) {
		t.Error("out-of-range offsets_start must fail open")
	}
}

func TestFilterBlockEmptyNoKeys(t *testing.T) {
	b := newFilterBlockBuilder(alwaysTrueFilterPolicy{})
	contents := b.finish()
	r := newFilterBlockReader(alwaysTrueFilterPolicy{}, contents)
	// No StartBlock was ever called, so num == 0: every query fails open.
	if !r.keyMayMatch(0, []byte("x")) {
		t.Error("filter block with no strides recorded must fail open")
	}
}
