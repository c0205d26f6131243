package hashmap

import "github.com/mtots-lang/mtots/internal/value"

// StringPool is the global string-interning table (spec invariant 1):
// two strings with equal bytes are always the same *value.String.
// Lookup is by Go map for speed; the intrusive `next` chain on
// value.String also threads every interned string together so the GC
// can walk the whole pool during tableRemoveWhite without needing a
// second data structure.
type StringPool struct {
	index map[string]*value.String
	head  *value.String
	count int
}

func NewStringPool() *StringPool {
	return &StringPool{index: make(map[string]*value.String, 256)}
}

// Intern returns the canonical *value.String for s, allocating a new
// one (and threading it into the pool's list) on first occurrence.
func (p *StringPool) Intern(s string) *value.String {
	if existing, ok := p.index[s]; ok {
		return existing
	}
	str := &value.String{Value: s, Hash: value.HashString(s)}
	p.index[s] = str
	str.SetNextStr(p.head)
	p.head = str
	p.count++
	return str
}

func (p *StringPool) Len() int { return p.count }

// Each visits every interned string, live or not, most recently
// interned first.
func (p *StringPool) Each(f func(*value.String)) {
	for s := p.head; s != nil; s = s.NextStr() {
		f(s)
	}
}

// RemoveWhite drops every interned string whose mark bit is still
// unset after a full trace, per spec §4.C's "tableRemoveWhite removes
// unmarked keys from the string table (canonical-string weak
// references)". Returns the number removed.
func (p *StringPool) RemoveWhite() int {
	var newHead *value.String
	var tail *value.String
	removed := 0
	for s := p.head; s != nil; {
		next := s.NextStr()
		if s.Marked() {
			s.SetNextStr(nil)
			if tail == nil {
				newHead = s
			} else {
				tail.SetNextStr(s)
			}
			tail = s
		} else {
			delete(p.index, s.Value)
			p.count--
			removed++
		}
		s = next
	}
	p.head = newHead
	return removed
}

// internedEntry is one bucket slot in an AggregateIntern table: the
// structural hash plus every not-yet-proven-distinct candidate with
// that hash (a genuine collision is rare but must be handled, same as
// the reference implementation's string/tuple table).
type internedEntry struct {
	hash  uint32
	items []value.Object
}

// AggregateIntern holds the intern table shared by Tuple and FrozenMap
// (spec invariant 2 / GLOSSARY "Interned aggregate"): structurally
// equal aggregates collapse to the same object, enabling their use as
// map keys.
type AggregateIntern struct {
	buckets map[uint32]*internedEntry
	count   int
}

func NewAggregateIntern() *AggregateIntern {
	return &AggregateIntern{buckets: make(map[uint32]*internedEntry)}
}

func (a *AggregateIntern) Len() int { return a.count }

// FindOrInsertTuple returns the canonical tuple structurally equal to
// elems, constructing and interning a new one if none exists yet.
func (a *AggregateIntern) FindOrInsertTuple(elems []value.Value) *value.Tuple {
	elemHashes := make([]uint32, len(elems))
	for i, e := range elems {
		h, ok := value.Hashable(e)
		if !ok {
			h = 0 // unhashable elements still get a tuple identity via 0-fold
		}
		elemHashes[i] = h
	}
	hash := value.HashTuple(elemHashes)

	bucket, ok := a.buckets[hash]
	if ok {
		for _, obj := range bucket.items {
			if t, isT := obj.(*value.Tuple); isT && tupleElemsEqual(t.Elements, elems) {
				return t
			}
		}
	} else {
		bucket = &internedEntry{hash: hash}
		a.buckets[hash] = bucket
	}
	t := &value.Tuple{Elements: append([]value.Value(nil), elems...)}
	t.SetHash(hash)
	bucket.items = append(bucket.items, t)
	a.count++
	return t
}

func tupleElemsEqual(a, b []value.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !value.ValuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// FindOrInsertFrozenMap returns the canonical frozen map structurally
// equal to the given key/value pairs.
func (a *AggregateIntern) FindOrInsertFrozenMap(keys, vals []value.Value) (*value.FrozenMap, error) {
	entryHashes := make([]uint32, 0, len(keys)*2)
	for i, k := range keys {
		kh, ok := value.Hashable(k)
		if !ok {
			return nil, unhashableError(k)
		}
		vh, _ := value.Hashable(vals[i])
		entryHashes = append(entryHashes, kh, vh)
	}
	hash := value.HashFrozenMap(len(keys), entryHashes)

	bucket, ok := a.buckets[hash]
	if ok {
		for _, obj := range bucket.items {
			if fm, isFM := obj.(*value.FrozenMap); isFM && frozenMapContentEqual(fm, keys, vals) {
				return fm, nil
			}
		}
	} else {
		bucket = &internedEntry{hash: hash}
		a.buckets[hash] = bucket
	}
	fm := &value.FrozenMap{
		Keys: append([]value.Value(nil), keys...),
		Vals: append([]value.Value(nil), vals...),
	}
	fm.SetHash(hash)
	bucket.items = append(bucket.items, fm)
	a.count++
	return fm, nil
}

func frozenMapContentEqual(fm *value.FrozenMap, keys, vals []value.Value) bool {
	if len(fm.Keys) != len(keys) {
		return false
	}
	for i, k := range keys {
		v, ok := fm.Get(k)
		if !ok || !value.ValuesEqual(v, vals[i]) {
			return false
		}
	}
	return true
}

// RemoveWhite prunes every interned tuple/frozen-map whose mark bit is
// unset, mirroring the pruning RemoveWhite does for strings (spec
// §4.C: "the tuple/frozen-map intern tables are similarly pruned").
func (a *AggregateIntern) RemoveWhite(marked func(value.Object) bool) int {
	removed := 0
	for hash, bucket := range a.buckets {
		kept := bucket.items[:0]
		for _, obj := range bucket.items {
			if marked(obj) {
				kept = append(kept, obj)
			} else {
				removed++
				a.count--
			}
		}
		if len(kept) == 0 {
			delete(a.buckets, hash)
		} else {
			bucket.items = kept
		}
	}
	return removed
}
