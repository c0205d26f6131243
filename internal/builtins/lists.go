package builtins

import "github.com/mtots-lang/mtots/internal/value"

func listAppend(ctx value.CallContext, args []value.Value) (value.Value, error) {
	list := args[0].ObjectOf().(*value.List)
	list.Append(args[1])
	return args[0], nil
}

func listPop(ctx value.CallContext, args []value.Value) (value.Value, error) {
	list := args[0].ObjectOf().(*value.List)
	n := len(list.Elements)
	if n == 0 {
		return value.Nil(), ctx.RuntimeError("Pop from an empty List")
	}
	v := list.Elements[n-1]
	list.Elements = list.Elements[:n-1]
	return v, nil
}

// listMul implements `list * n`: repeats the receiver's elements n
// times into a fresh List (reference implListMul).
func listMul(ctx value.CallContext, args []value.Value) (value.Value, error) {
	list := args[0].ObjectOf().(*value.List)
	rep := int(args[1].Num)
	if rep < 0 {
		return value.Nil(), ctx.RuntimeError("List repeat count must not be negative")
	}
	elems := make([]value.Value, 0, len(list.Elements)*rep)
	for i := 0; i < rep; i++ {
		elems = append(elems, list.Elements...)
	}
	out := value.NewList(elems)
	ctx.Track(out)
	return value.Obj(out), nil
}

func listGetItem(ctx value.CallContext, args []value.Value) (value.Value, error) {
	list := args[0].ObjectOf().(*value.List)
	index := int(args[1].Num)
	if index < 0 {
		index += len(list.Elements)
	}
	if index < 0 || index >= len(list.Elements) {
		return value.Nil(), ctx.RuntimeError("Index %d out of range of List (len=%d)", index, len(list.Elements))
	}
	return list.Elements[index], nil
}

func listSetItem(ctx value.CallContext, args []value.Value) (value.Value, error) {
	list := args[0].ObjectOf().(*value.List)
	index := int(args[1].Num)
	if index < 0 {
		index += len(list.Elements)
	}
	if index < 0 || index >= len(list.Elements) {
		return value.Nil(), ctx.RuntimeError("Index %d out of range of List (len=%d)", index, len(list.Elements))
	}
	list.Elements[index] = args[2]
	return args[2], nil
}

// listIterState is the captured state for a List iterator's
// NativeClosure.Body, mirroring the reference's ObjListIterator
// (the list itself plus a cursor). Blacken marks the captured list so
// the collector keeps it alive while the iterator is reachable.
type listIterState struct {
	list  *value.List
	index int
}

func listIter(ctx value.CallContext, args []value.Value) (value.Value, error) {
	list := args[0].ObjectOf().(*value.List)
	state := &listIterState{list: list}
	nc := &value.NativeClosure{
		Name: "ListIterator",
		Body: func(_ []value.Value) (value.Value, error) {
			if state.index >= len(state.list.Elements) {
				return value.Sent(value.SentinelStopIteration), nil
			}
			v := state.list.Elements[state.index]
			state.index++
			return v, nil
		},
		Blacken: func(st interface{}, mark func(value.Value)) {
			s := st.(*listIterState)
			mark(value.Obj(s.list))
		},
		State: state,
	}
	ctx.Track(nc)
	return value.Obj(nc), nil
}

// RegisterList populates the built-in List class's method table
// (reference initListClass).
func RegisterList(cls *value.Class) {
	def := func(name string, min, max int, patterns []value.TypePattern, body func(value.CallContext, []value.Value) (value.Value, error)) {
		cls.Methods[name] = value.Fn(&value.CFunction{
			Name: name, MinArity: min, MaxArity: max, Params: patterns, Body: body,
		})
	}
	def("append", 1, 1, nil, listAppend)
	def("pop", 0, 0, nil, listPop)
	def("__mul__", 1, 1, []value.TypePattern{{Kind: value.PatternNumber}}, listMul)
	def("__getitem__", 1, 1, []value.TypePattern{{Kind: value.PatternNumber}}, listGetItem)
	def("__setitem__", 2, 2, []value.TypePattern{{Kind: value.PatternNumber}, {Kind: value.PatternAny}}, listSetItem)
	def("__iter__", 0, 0, nil, listIter)
}
