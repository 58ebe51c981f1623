// Package cache implements the pluggable block-cache contract: a
// ref-counted, thread-safe cache of decoded blocks keyed by opaque
// byte strings. Handles are tagged tokens rather than raw pointers —
// the cache alone owns an entry's memory; a Handle is only a
// ref-count receipt, safely copyable and comparable.
package cache

import "sync"

// Deleter is invoked exactly once, when the last Handle referencing an
// entry is released (or the entry is pruned/erased while unreferenced).
// It is the caller's hook to reclaim whatever Value produced.
type Deleter func(key string, value any)

// Handle is an opaque ref-count receipt returned by Insert and Lookup.
// The zero Handle is never valid and is returned on a cache miss.
type Handle struct {
	id uint64
}

// Valid reports whether h refers to a live entry.
func (h Handle) Valid() bool { return h.id != 0 }

type entry struct {
	key      string
	value    any
	charge   int64
	deleter  Deleter
	refs     int
	inLRU    bool
	next, prev *entry
}

// entryList is an intrusive doubly linked list, avoiding a separate
// allocation per element the way container/list would require.
type entryList struct{ root entry }

func (l *entryList) init() { l.root.next, l.root.prev = &l.root, &l.root }

func (l *entryList) empty() bool { return l.root.next == &l.root }

func (l *entryList) back() *entry { return l.root.prev }

func (l *entryList) insertAfter(e, at *entry) {
	n := at.next
	at.next, e.prev, e.next, n.prev = e, at, n, e
}

func (l *entryList) remove(e *entry) {
	e.prev.next, e.next.prev = e.next, e.prev
	e.next, e.prev = nil, nil
}

func (l *entryList) pushFront(e *entry) { l.insertAfter(e, &l.root) }

func (l *entryList) moveToFront(e *entry) {
	if l.root.next == e {
		return
	}
	l.remove(e)
	l.pushFront(e)
}

// LRU is a capacity-bounded, ref-counted block cache satisfying the
// table reader's Cache contract. Eviction only removes entries with a
// zero reference count: a Handle held by a live iterator pins its
// entry in the cache regardless of recency.
type LRU struct {
	mu sync.Mutex

	capacity int64
	used     int64
	nextID   uint64

	byKey    map[string]*entry
	byHandle map[uint64]*entry
	lru      entryList
}

// NewLRU creates an LRU cache with the given total charge capacity
// (interpreted in whatever units callers pass to Insert, conventionally
// bytes).
func NewLRU(capacity int64) *LRU {
	c := &LRU{
		capacity: capacity,
		byKey:    make(map[string]*entry),
		byHandle: make(map[uint64]*entry),
	}
	c.lru.init()
	return c
}

// Lookup returns a Handle for key, incrementing its reference count, or
// the zero Handle on a miss. Each call mints a fresh Handle even if one
// is already outstanding for the same key: every Handle is an
// independent receipt and must be Released independently.
func (c *LRU) Lookup(key string) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.byKey[key]
	if !ok {
		return Handle{}
	}
	return c.ref(e)
}

// Insert adds value under key with the given charge against capacity,
// returning a Handle with a reference count of one. If key is already
// present, the existing entry's Handle is returned instead and value is
// discarded (the caller's deleter, if any, is invoked on it immediately
// — Insert never silently leaks a value it was handed).
func (c *LRU) Insert(key string, value any, charge int64, deleter Deleter) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.byKey[key]; ok {
		if deleter != nil {
			deleter(key, value)
		}
		return c.ref(e)
	}

	e := &entry{key: key, value: value, charge: charge, deleter: deleter}
	c.byKey[key] = e
	c.used += charge
	h := c.ref(e)
	c.evict()
	return h
}

// ref mints a new Handle for e, incrementing its reference count and
// unlinking it from the LRU list (a referenced entry is never
// eligible for eviction). Caller must hold c.mu.
func (c *LRU) ref(e *entry) Handle {
	e.refs++
	if e.inLRU {
		c.lru.remove(e)
		e.inLRU = false
	}
	c.nextID++
	c.byHandle[c.nextID] = e
	return Handle{id: c.nextID}
}

// Value returns the value associated with h, or nil if h is invalid or
// stale.
func (c *LRU) Value(h Handle) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.byHandle[h.id]; ok {
		return e.value
	}
	return nil
}

// Release decrements h's reference count. At zero, the entry becomes
// eligible for LRU eviction; if it has already been Erased while
// referenced, it is deleted immediately instead.
func (c *LRU) Release(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.byHandle[h.id]
	if !ok {
		return
	}
	delete(c.byHandle, h.id)
	e.refs--
	if e.refs > 0 {
		return
	}
	if cur, live := c.byKey[e.key]; live && cur == e {
		c.lru.pushFront(e)
		e.inLRU = true
		c.evict()
		return
	}
	c.destroy(e)
}

// Erase removes key from the cache. An entry with outstanding
// references is unlinked from lookup but not destroyed until its last
// Release.
func (c *LRU) Erase(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.byKey[key]
	if !ok {
		return
	}
	delete(c.byKey, key)
	if e.inLRU {
		c.lru.remove(e)
		e.inLRU = false
	}
	if e.refs == 0 {
		c.destroy(e)
	}
}

// NewID returns a monotonically increasing identifier, suitable for use
// as a table's cache_id component of a block-cache key.
func (c *LRU) NewID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return c.nextID
}

// Prune evicts every currently unreferenced entry, regardless of
// capacity pressure.
func (c *LRU) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for !c.lru.empty() {
		e := c.lru.back()
		c.lru.remove(e)
		delete(c.byKey, e.key)
		c.destroy(e)
	}
}

// TotalCharge returns the sum of charges of entries currently resident.
func (c *LRU) TotalCharge() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

func (c *LRU) evict() {
	for c.used > c.capacity && !c.lru.empty() {
		e := c.lru.back()
		c.lru.remove(e)
		delete(c.byKey, e.key)
		c.destroy(e)
	}
}

// destroy invokes e's deleter and removes its charge. Caller must hold
// c.mu and have already unlinked e from both maps and the LRU list.
func (c *LRU) destroy(e *entry) {
	c.used -= e.charge
	if e.deleter != nil {
		e.deleter(e.key, e.value)
	}
}
