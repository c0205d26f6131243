// Package hashmap implements Mtots' shared open-addressed hash table
// (spec §4.B) and the global string/tuple/frozen-map intern pools
// (spec §3 invariants 1-2). Table backs the user-facing Map/Dict
// object (and the prelude's set); class method tables, instance
// fields, and module globals are plain Go maps keyed by name.
package hashmap

import (
	"fmt"

	"github.com/mtots-lang/mtots/internal/value"
)

const maxLoadFactor = 0.75

// emptyKey is the sentinel used to mark empty and tombstone slots, per
// spec §4.B. An empty slot has EmptyKey key and Nil value; a tombstone
// has EmptyKey key and a non-nil (true) value.
var emptyKey = value.Sent(value.SentinelEmptyKey)

func isEmptyKey(v value.Value) bool {
	return v.Kind == value.KSentinel && v.Sent == value.SentinelEmptyKey
}

type entry struct {
	key, val   value.Value
	prev, next *entry
}

// Table is an open-addressed, linearly probed hash table whose live
// entries also form a doubly linked list in insertion order
// (invariant 4), surviving rehashes and deletions of other keys.
type Table struct {
	entries        []entry
	capacity       int
	occupied       int // live + tombstones
	size           int // live count only
	first, last    *entry
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{}
}

func (t *Table) Len() int { return t.size }

// find performs the linear probe described in spec §4.B, returning the
// slot a (possibly new) key belongs to: the live entry with a matching
// key if the probe reaches one; otherwise, once it hits an empty slot,
// the first tombstone seen, or that empty slot if there was none.
func (t *Table) find(key value.Value, hash uint32) (*entry, error) {
	if t.capacity == 0 {
		return nil, nil
	}
	mask := uint32(t.capacity - 1)
	index := hash & mask
	var tombstone *entry
	for {
		e := &t.entries[index]
		if isEmptyKey(e.key) {
			if e.val.IsNil() {
				if tombstone != nil {
					return tombstone, nil
				}
				return e, nil
			}
			if tombstone == nil {
				tombstone = e
			}
		} else if value.ValuesEqual(e.key, key) {
			return e, nil
		}
		index = (index + 1) & mask
	}
}

func (t *Table) Get(key value.Value) (value.Value, bool, error) {
	hash, ok := value.Hashable(key)
	if !ok {
		return value.Value{}, false, unhashableError(key)
	}
	if t.occupied == 0 {
		return value.Value{}, false, nil
	}
	e, err := t.find(key, hash)
	if err != nil {
		return value.Value{}, false, err
	}
	if e == nil || isEmptyKey(e.key) {
		return value.Value{}, false, nil
	}
	return e.val, true, nil
}

func (t *Table) link(e *entry) {
	if t.last == nil {
		t.first, t.last = e, e
		e.prev, e.next = nil, nil
		return
	}
	e.prev = t.last
	e.next = nil
	t.last.next = e
	t.last = e
}

func (t *Table) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		t.first = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		t.last = e.prev
	}
	e.prev, e.next = nil, nil
}

func (t *Table) Set(key, val value.Value) (bool, error) {
	hash, ok := value.Hashable(key)
	if !ok {
		return false, unhashableError(key)
	}
	if float64(t.occupied+1) > float64(t.capacity)*maxLoadFactor {
		newCap := t.capacity * 2
		if newCap == 0 {
			newCap = 8
		}
		t.rehash(newCap)
	}
	e, err := t.find(key, hash)
	if err != nil {
		return false, err
	}
	isNew := isEmptyKey(e.key)
	if isNew {
		if e.val.IsNil() {
			t.occupied++
		}
		t.size++
		t.link(e)
	}
	e.key = key
	e.val = val
	return isNew, nil
}

func (t *Table) rehash(newCapacity int) {
	oldFirst := t.first
	t.entries = make([]entry, newCapacity)
	for i := range t.entries {
		t.entries[i].key = emptyKey
		t.entries[i].val = value.Nil()
	}
	t.capacity = newCapacity
	t.occupied = 0
	t.first, t.last = nil, nil

	for p := oldFirst; p != nil; p = p.next {
		hash, _ := value.Hashable(p.key)
		dest, _ := t.find(p.key, hash)
		dest.key = p.key
		dest.val = p.val
		t.link(dest)
		t.occupied++
	}
}

func (t *Table) Delete(key value.Value) (bool, error) {
	hash, ok := value.Hashable(key)
	if !ok {
		return false, unhashableError(key)
	}
	if t.occupied == 0 {
		return false, nil
	}
	e, err := t.find(key, hash)
	if err != nil {
		return false, err
	}
	if e == nil || isEmptyKey(e.key) {
		return false, nil
	}
	t.unlink(e)
	e.key = emptyKey
	e.val = value.Bool(true) // tombstone: non-nil value at EmptyKey
	t.size--
	return true, nil
}

// Each visits every live entry in insertion order.
func (t *Table) Each(f func(k, v value.Value)) {
	for e := t.first; e != nil; e = e.next {
		f(e.key, e.val)
	}
}

// RGet linear-scans for the first key mapped to val ("reverse get").
func (t *Table) RGet(val value.Value) (value.Value, bool) {
	for e := t.first; e != nil; e = e.next {
		if value.ValuesEqual(e.val, val) {
			return e.key, true
		}
	}
	return value.Value{}, false
}

func unhashableError(key value.Value) error {
	return fmt.Errorf("%s values are not hashable", key.TypeName())
}
