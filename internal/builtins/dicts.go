package builtins

import "github.com/mtots-lang/mtots/internal/value"

func dictGetItem(ctx value.CallContext, args []value.Value) (value.Value, error) {
	m := args[0].ObjectOf().(*value.MapObj)
	v, ok, err := m.Table.Get(args[1])
	if err != nil {
		return value.Nil(), ctx.RuntimeError("%s", err.Error())
	}
	if !ok {
		return value.Nil(), ctx.RuntimeError("Key not found in dict")
	}
	return v, nil
}

func dictSetItem(ctx value.CallContext, args []value.Value) (value.Value, error) {
	m := args[0].ObjectOf().(*value.MapObj)
	_, err := m.Table.Set(args[1], args[2])
	if err != nil {
		return value.Nil(), ctx.RuntimeError("%s", err.Error())
	}
	return args[2], nil
}

func dictDelete(ctx value.CallContext, args []value.Value) (value.Value, error) {
	m := args[0].ObjectOf().(*value.MapObj)
	found, err := m.Table.Delete(args[1])
	if err != nil {
		return value.Nil(), ctx.RuntimeError("%s", err.Error())
	}
	return value.Bool(found), nil
}

func dictContains(ctx value.CallContext, args []value.Value) (value.Value, error) {
	m := args[0].ObjectOf().(*value.MapObj)
	_, ok, err := m.Table.Get(args[1])
	if err != nil {
		return value.Nil(), ctx.RuntimeError("%s", err.Error())
	}
	return value.Bool(ok), nil
}

// dictRget is the reverse (value -> key) lookup, a slow linear scan
// over the table (reference implDictRget): an optional second
// argument supplies a fallback instead of raising on a miss.
func dictRget(ctx value.CallContext, args []value.Value) (value.Value, error) {
	m := args[0].ObjectOf().(*value.MapObj)
	key, ok := m.Table.RGet(args[1])
	if ok {
		return key, nil
	}
	if len(args) > 2 {
		return args[2], nil
	}
	return value.Nil(), ctx.RuntimeError("No entry with given value found in Dict")
}

type dictIterState struct {
	dict *value.MapObj
	keys []value.Value
	pos  int
}

// dictIter snapshots the current keys up front (reference's
// MapIterator walks the live table, but this design's Table mutates
// its own entry slice on delete, so a snapshot avoids an iterator
// outliving a concurrent mutation of the same dict mid-loop).
func dictIter(ctx value.CallContext, args []value.Value) (value.Value, error) {
	m := args[0].ObjectOf().(*value.MapObj)
	keys := make([]value.Value, 0, m.Table.Len())
	m.Table.Each(func(k, _ value.Value) { keys = append(keys, k) })
	state := &dictIterState{dict: m, keys: keys}
	nc := &value.NativeClosure{
		Name: "DictIterator",
		Body: func(_ []value.Value) (value.Value, error) {
			if state.pos >= len(state.keys) {
				return value.Sent(value.SentinelStopIteration), nil
			}
			k := state.keys[state.pos]
			state.pos++
			return k, nil
		},
		Blacken: func(st interface{}, mark func(value.Value)) {
			s := st.(*dictIterState)
			mark(value.Obj(s.dict))
		},
		State: state,
	}
	ctx.Track(nc)
	return value.Obj(nc), nil
}

// RegisterDict populates the built-in Dict class's method table
// (reference initDictClass).
func RegisterDict(cls *value.Class) {
	def := func(name string, min, max int, patterns []value.TypePattern, body func(value.CallContext, []value.Value) (value.Value, error)) {
		cls.Methods[name] = value.Fn(&value.CFunction{
			Name: name, MinArity: min, MaxArity: max, Params: patterns, Body: body,
		})
	}
	def("__getitem__", 1, 1, nil, dictGetItem)
	def("__setitem__", 2, 2, nil, dictSetItem)
	def("delete", 1, 1, nil, dictDelete)
	def("__contains__", 1, 1, nil, dictContains)
	def("rget", 1, 2, nil, dictRget)
	def("__iter__", 0, 0, nil, dictIter)
}
