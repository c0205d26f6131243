package builtins

import "github.com/mtots-lang/mtots/internal/value"

// tupleMul implements `tuple * n`, returning the canonical interned
// tuple for the repeated sequence (invariant 2 — reference implTupleMul).
func tupleMul(ctx value.CallContext, args []value.Value) (value.Value, error) {
	tup := args[0].ObjectOf().(*value.Tuple)
	rep := int(args[1].Num)
	if rep < 0 {
		return value.Nil(), ctx.RuntimeError("Tuple repeat count must not be negative")
	}
	elems := make([]value.Value, 0, len(tup.Elements)*rep)
	for i := 0; i < rep; i++ {
		elems = append(elems, tup.Elements...)
	}
	return value.Obj(ctx.InternTuple(elems)), nil
}

func tupleGetItem(ctx value.CallContext, args []value.Value) (value.Value, error) {
	tup := args[0].ObjectOf().(*value.Tuple)
	index := int(args[1].Num)
	if index < 0 {
		index += len(tup.Elements)
	}
	if index < 0 || index >= len(tup.Elements) {
		return value.Nil(), ctx.RuntimeError("Index %d out of range of Tuple (len=%d)", index, len(tup.Elements))
	}
	return tup.Elements[index], nil
}

type tupleIterState struct {
	tuple *value.Tuple
	index int
}

func tupleIter(ctx value.CallContext, args []value.Value) (value.Value, error) {
	tup := args[0].ObjectOf().(*value.Tuple)
	state := &tupleIterState{tuple: tup}
	nc := &value.NativeClosure{
		Name: "TupleIterator",
		Body: func(_ []value.Value) (value.Value, error) {
			if state.index >= len(state.tuple.Elements) {
				return value.Sent(value.SentinelStopIteration), nil
			}
			v := state.tuple.Elements[state.index]
			state.index++
			return v, nil
		},
		Blacken: func(st interface{}, mark func(value.Value)) {
			s := st.(*tupleIterState)
			mark(value.Obj(s.tuple))
		},
		State: state,
	}
	ctx.Track(nc)
	return value.Obj(nc), nil
}

// RegisterTuple populates the built-in Tuple class's method table
// (reference initTupleClass).
func RegisterTuple(cls *value.Class) {
	def := func(name string, min, max int, patterns []value.TypePattern, body func(value.CallContext, []value.Value) (value.Value, error)) {
		cls.Methods[name] = value.Fn(&value.CFunction{
			Name: name, MinArity: min, MaxArity: max, Params: patterns, Body: body,
		})
	}
	def("__mul__", 1, 1, []value.TypePattern{{Kind: value.PatternNumber}}, tupleMul)
	def("__getitem__", 1, 1, []value.TypePattern{{Kind: value.PatternNumber}}, tupleGetItem)
	def("__iter__", 0, 0, nil, tupleIter)
}
