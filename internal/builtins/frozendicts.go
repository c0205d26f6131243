package builtins

import "github.com/mtots-lang/mtots/internal/value"

func frozenDictGetItem(ctx value.CallContext, args []value.Value) (value.Value, error) {
	fm := args[0].ObjectOf().(*value.FrozenMap)
	v, ok := fm.Get(args[1])
	if !ok {
		return value.Nil(), ctx.RuntimeError("Key not found in dict")
	}
	return v, nil
}

func frozenDictContains(ctx value.CallContext, args []value.Value) (value.Value, error) {
	fm := args[0].ObjectOf().(*value.FrozenMap)
	_, ok := fm.Get(args[1])
	return value.Bool(ok), nil
}

func frozenDictRget(ctx value.CallContext, args []value.Value) (value.Value, error) {
	fm := args[0].ObjectOf().(*value.FrozenMap)
	for i, v := range fm.Vals {
		if value.ValuesEqual(v, args[1]) {
			return fm.Keys[i], nil
		}
	}
	if len(args) > 2 {
		return args[2], nil
	}
	return value.Nil(), ctx.RuntimeError("No entry with given value found in FrozenDict")
}

type frozenDictIterState struct {
	fm  *value.FrozenMap
	pos int
}

func frozenDictIter(ctx value.CallContext, args []value.Value) (value.Value, error) {
	fm := args[0].ObjectOf().(*value.FrozenMap)
	state := &frozenDictIterState{fm: fm}
	nc := &value.NativeClosure{
		Name: "FrozenDictIterator",
		Body: func(_ []value.Value) (value.Value, error) {
			if state.pos >= len(state.fm.Keys) {
				return value.Sent(value.SentinelStopIteration), nil
			}
			k := state.fm.Keys[state.pos]
			state.pos++
			return k, nil
		},
		Blacken: func(st interface{}, mark func(value.Value)) {
			s := st.(*frozenDictIterState)
			mark(value.Obj(s.fm))
		},
		State: state,
	}
	ctx.Track(nc)
	return value.Obj(nc), nil
}

// RegisterFrozenDict populates the built-in FrozenDict class's method
// table (reference initFrozenDictClass).
func RegisterFrozenDict(cls *value.Class) {
	def := func(name string, min, max int, body func(value.CallContext, []value.Value) (value.Value, error)) {
		cls.Methods[name] = value.Fn(&value.CFunction{Name: name, MinArity: min, MaxArity: max, Body: body})
	}
	def("__getitem__", 1, 1, frozenDictGetItem)
	def("__contains__", 1, 1, frozenDictContains)
	def("rget", 1, 2, frozenDictRget)
	def("__iter__", 0, 0, frozenDictIter)
}
