package value

import "testing"

func TestHashableNumbersOnlyRoundTripThroughInt32(t *testing.T) {
	if _, ok := Hashable(Number(42)); !ok {
		t.Fatal("42 must be hashable")
	}
	if _, ok := Hashable(Number(1.5)); ok {
		t.Fatal("1.5 does not round-trip through int32 and must not be hashable")
	}
	if _, ok := Hashable(Number(1 << 40)); ok {
		t.Fatal("a value outside int32 range must not be hashable")
	}
}

func TestHashableBoolNilSentinelAreStableConstants(t *testing.T) {
	hTrue, ok := Hashable(Bool(true))
	if !ok || hTrue != 1231 {
		t.Fatalf("true hash: got %d, ok %v", hTrue, ok)
	}
	hFalse, ok := Hashable(Bool(false))
	if !ok || hFalse != 1237 {
		t.Fatalf("false hash: got %d, ok %v", hFalse, ok)
	}
	hNil, ok := Hashable(Nil())
	if !ok || hNil != 17 {
		t.Fatalf("nil hash: got %d, ok %v", hNil, ok)
	}
}

func TestHashableListsAndMapsAreNotHashable(t *testing.T) {
	if _, ok := Hashable(Obj(NewList(nil))); ok {
		t.Fatal("List must not be hashable")
	}
	if _, ok := Hashable(Obj(&MapObj{})); ok {
		t.Fatal("MapObj must not be hashable")
	}
}

func TestHashableTupleAndFrozenMapUseCachedHash(t *testing.T) {
	tup := &Tuple{Elements: []Value{Number(1)}}
	tup.SetHash(12345)
	h, ok := Hashable(Obj(tup))
	if !ok || h != 12345 {
		t.Fatalf("tuple hash: got %d, ok %v", h, ok)
	}

	fm := &FrozenMap{}
	fm.SetHash(54321)
	h, ok = Hashable(Obj(fm))
	if !ok || h != 54321 {
		t.Fatalf("frozenmap hash: got %d, ok %v", h, ok)
	}
}

func TestValuesEqualAcrossKinds(t *testing.T) {
	if !ValuesEqual(Number(1), Number(1)) {
		t.Fatal("equal numbers must compare equal")
	}
	if ValuesEqual(Number(1), Bool(true)) {
		t.Fatal("different kinds must never compare equal")
	}
	if !ValuesEqual(Nil(), Nil()) {
		t.Fatal("nil == nil")
	}

	s1 := &String{Value: "x"}
	if ValuesEqual(Str(s1), Str(&String{Value: "x"})) {
		t.Fatal("strings compare by identity, not by value, at this layer")
	}
	if !ValuesEqual(Str(s1), Str(s1)) {
		t.Fatal("identical string pointers must compare equal")
	}
}

func TestValuesEqualListsCompareStructurally(t *testing.T) {
	a := NewList([]Value{Number(1), Number(2)})
	b := NewList([]Value{Number(1), Number(2)})
	if !ValuesEqual(Obj(a), Obj(b)) {
		t.Fatal("lists with equal elements must compare equal structurally")
	}
	c := NewList([]Value{Number(1), Number(3)})
	if ValuesEqual(Obj(a), Obj(c)) {
		t.Fatal("lists with differing elements must not compare equal")
	}
}

func TestHashTupleAndHashFrozenMapAreDeterministic(t *testing.T) {
	h1 := HashTuple([]uint32{1, 2, 3})
	h2 := HashTuple([]uint32{1, 2, 3})
	if h1 != h2 {
		t.Fatal("HashTuple must be a pure function of its inputs")
	}
	h3 := HashTuple([]uint32{1, 2, 4})
	if h1 == h3 {
		t.Fatal("differing element hashes should (with overwhelming likelihood) fold differently")
	}

	g1 := HashFrozenMap(2, []uint32{1, 2})
	g2 := HashFrozenMap(2, []uint32{1, 2})
	if g1 != g2 {
		t.Fatal("HashFrozenMap must be a pure function of its inputs")
	}
}

// TestHashFrozenMapIsOrderIndependent covers invariant 2: two frozen
// maps with the same entries built/iterated in different key order
// must hash identically, or they would fail to intern to the same
// canonical object.
func TestHashFrozenMapIsOrderIndependent(t *testing.T) {
	forward := HashFrozenMap(2, []uint32{10, 100, 20, 200})
	reversed := HashFrozenMap(2, []uint32{20, 200, 10, 100})
	if forward != reversed {
		t.Fatalf("hash must not depend on entry order: forward=%d reversed=%d", forward, reversed)
	}
}
