package value

import "hash/fnv"

// Hashable reports whether v can be used as a map/dict key, and if so
// returns its hash per spec §4.B's exact rules (these must match
// byte-for-byte with the interning logic in internal/hashmap, since
// interning and map-keying share the same hash function).
func Hashable(v Value) (uint32, bool) {
	switch v.Kind {
	case KBool:
		if v.AsBool() {
			return 1231, true
		}
		return 1237, true
	case KNil:
		return 17, true
	case KNumber:
		if i32, ok := asInt32(v.Num); ok {
			return uint32(i32), true
		}
		return 0, false
	case KSentinel:
		return uint32(v.Sent), true
	case KString:
		return v.Str.Hash, true
	case KObject:
		switch o := v.Obj.(type) {
		case *Tuple:
			return o.Hash(), true
		case *FrozenMap:
			return o.Hash(), true
		}
		return 0, false
	}
	return 0, false
}

// asInt32 reports whether f round-trips exactly through a signed
// 32-bit integer, per spec §4.B's "number that equals a representable
// 32-bit integer" rule and §9's "floats that do not round-trip
// through i32 are not hashable at all" quirk.
func asInt32(f float64) (int32, bool) {
	i := int32(f)
	if float64(i) == f {
		return i, true
	}
	return 0, false
}

// HashString computes the FNV-1a hash of s, used both to intern
// strings and to hash them as map keys.
func HashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// HashTuple folds the four little-endian bytes of each element's hash,
// matching spec §4.B's "Crafting-Interpreters-style mixing".
func HashTuple(elemHashes []uint32) uint32 {
	h := uint32(2166136261) // FNV offset basis
	for _, eh := range elemHashes {
		b0 := byte(eh)
		b1 := byte(eh >> 8)
		b2 := byte(eh >> 16)
		b3 := byte(eh >> 24)
		h = (h ^ uint32(b0)) * 16777619
		h = (h ^ uint32(b1)) * 16777619
		h = (h ^ uint32(b2)) * 16777619
		h = (h ^ uint32(b3)) * 16777619
	}
	return h
}

// HashFrozenMap implements spec §4.B's Python-frozenset-style hash
// (the CPython frozenset algorithm, per the reference's hashMap):
// entryHashes holds each entry's key hash immediately followed by its
// value hash. Each entry's contribution is XORed into the accumulator
// independently of position, so the result does not depend on
// insertion/iteration order — required for invariant 2, since two
// structurally-equal frozen maps built in different key order must
// still hash (and therefore intern) identically.
func HashFrozenMap(size int, entryHashes []uint32) uint32 {
	h := uint32(1927868237) * 2 * uint32(size) * 2
	for i := 0; i+1 < len(entryHashes); i += 2 {
		kh, vh := entryHashes[i], entryHashes[i+1]
		h ^= (kh ^ (kh << 16) ^ 89869747) * 3644798167
		h ^= (vh ^ (vh << 16) ^ 89869747) * 3644798167
	}
	h = h*69069 + 907133923
	return h
}

// ValuesEqual implements Mtots' `==`: numbers compare by value,
// strings/tuples/frozen-maps compare by identity (which is structural
// equality thanks to interning), and everything else falls back to
// per-kind structural comparison.
func ValuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KNil:
		return true
	case KBool, KNumber:
		return a.Num == b.Num
	case KString:
		return a.Str == b.Str
	case KOperator:
		return a.Op == b.Op
	case KSentinel:
		return a.Sent == b.Sent
	case KCFunction:
		return a.CFn == b.CFn
	case KObject:
		return objectsEqual(a.Obj, b.Obj)
	}
	return false
}

func objectsEqual(a, b Object) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.ObjType() != b.ObjType() {
		return false
	}
	switch av := a.(type) {
	case *Tuple:
		bv := b.(*Tuple)
		return tuplesEqual(av, bv)
	case *FrozenMap:
		bv := b.(*FrozenMap)
		return frozenMapsEqual(av, bv)
	case *List:
		bv := b.(*List)
		if len(av.Elements) != len(bv.Elements) {
			return false
		}
		for i := range av.Elements {
			if !ValuesEqual(av.Elements[i], bv.Elements[i]) {
				return false
			}
		}
		return true
	case *MapObj:
		bv := b.(*MapObj)
		if av.Table.Len() != bv.Table.Len() {
			return false
		}
		equal := true
		av.Table.Each(func(k, v Value) {
			ov, ok, _ := bv.Table.Get(k)
			if !ok || !ValuesEqual(v, ov) {
				equal = false
			}
		})
		return equal
	}
	return false
}

func tuplesEqual(a, b *Tuple) bool {
	if len(a.Elements) != len(b.Elements) {
		return false
	}
	for i := range a.Elements {
		if !ValuesEqual(a.Elements[i], b.Elements[i]) {
			return false
		}
	}
	return true
}

func frozenMapsEqual(a, b *FrozenMap) bool {
	if len(a.Keys) != len(b.Keys) {
		return false
	}
	for i, k := range a.Keys {
		v, ok := b.Get(k)
		if !ok || !ValuesEqual(v, a.Vals[i]) {
			return false
		}
	}
	return true
}
