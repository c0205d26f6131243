package importer

import (
	"sort"

	"github.com/mtots-lang/mtots/internal/hashmap"
	"github.com/mtots-lang/mtots/internal/value"
)

// PreludeNames lists the hoisted, unqualified names every module
// starts with, mirroring the reference's prepPrelude() (see
// original_source/src/mtots_import*.c): built from native Go
// functions here rather than interpreted Mtots source, since each one
// needs direct access to the List/Tuple/Dict Go representations that
// only internal/value (not the bytecode layer) exposes.
var PreludeNames = []string{"sorted", "list", "tuple", "dict", "set"}

// SeedPrelude installs the prelude bindings into a freshly constructed
// module's globals, before that module's top-level source is
// compiled and run. Every module — __main__ and every import — gets
// its own copy, exactly as OP_GET_GLOBAL resolves names against the
// running frame's own Module.Fields rather than a single shared table.
func SeedPrelude(fields map[string]value.Value) {
	seed := map[string]*value.CFunction{
		"sorted": {Name: "sorted", MinArity: 1, MaxArity: 1, Body: preludeSorted},
		"list":   {Name: "list", MinArity: 1, MaxArity: 1, Body: preludeList},
		"tuple":  {Name: "tuple", MinArity: 1, MaxArity: 1, Body: preludeTuple},
		"dict":   {Name: "dict", MinArity: 0, MaxArity: 1, Body: preludeDict},
		"set":    {Name: "set", MinArity: 0, MaxArity: 1, Body: preludeSet},
	}
	for name, fn := range seed {
		if _, exists := fields[name]; !exists {
			fields[name] = value.Fn(fn)
		}
	}
}

// elementsOf pulls the underlying Go slice out of the built-in
// aggregate kinds this prelude understands (List, Tuple, or the keys
// of a Dict) without needing the general iterator protocol, which
// lives one layer up in internal/vm.
func elementsOf(ctx value.CallContext, v value.Value) ([]value.Value, error) {
	switch o := v.ObjectOf().(type) {
	case *value.List:
		return o.Elements, nil
	case *value.Tuple:
		return o.Elements, nil
	case *value.MapObj:
		var keys []value.Value
		o.Table.Each(func(k, _ value.Value) { keys = append(keys, k) })
		return keys, nil
	}
	return nil, ctx.RuntimeError("%s is not iterable by this prelude function", v.TypeName())
}

func preludeSorted(ctx value.CallContext, args []value.Value) (value.Value, error) {
	elems, err := elementsOf(ctx, args[1])
	if err != nil {
		return value.Nil(), err
	}
	out := append([]value.Value(nil), elems...)
	var sortErr error
	sort.SliceStable(out, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		less, err := lessThan(out[i], out[j])
		if err != nil {
			sortErr = err
			return false
		}
		return less
	})
	if sortErr != nil {
		return value.Nil(), sortErr
	}
	list := value.NewList(out)
	ctx.Track(list)
	return value.Obj(list), nil
}

// lessThan duplicates the ordering rule internal/vm.valueLessThan
// implements for OP_LESS (numbers and strings only); kept local since
// importer cannot depend on internal/vm.
func lessThan(a, b value.Value) (bool, error) {
	switch {
	case a.IsNumber() && b.IsNumber():
		return a.Num < b.Num, nil
	case a.IsString() && b.IsString():
		return a.Str.Value < b.Str.Value, nil
	}
	return false, fgRuntimeError("Operands must be two numbers or two strings")
}

type runtimeErr string

func (e runtimeErr) Error() string { return string(e) }
func fgRuntimeError(msg string) error { return runtimeErr(msg) }

func preludeList(ctx value.CallContext, args []value.Value) (value.Value, error) {
	elems, err := elementsOf(ctx, args[1])
	if err != nil {
		return value.Nil(), err
	}
	list := value.NewList(elems)
	ctx.Track(list)
	return value.Obj(list), nil
}

func preludeTuple(ctx value.CallContext, args []value.Value) (value.Value, error) {
	elems, err := elementsOf(ctx, args[1])
	if err != nil {
		return value.Nil(), err
	}
	return value.Obj(ctx.InternTuple(elems)), nil
}

func preludeDict(ctx value.CallContext, args []value.Value) (value.Value, error) {
	m := &value.MapObj{Table: hashmap.NewTable()}
	if len(args) > 1 {
		pairs, err := elementsOf(ctx, args[1])
		if err != nil {
			return value.Nil(), err
		}
		for _, pair := range pairs {
			tup, ok := pair.ObjectOf().(*value.Tuple)
			if !ok || len(tup.Elements) != 2 {
				return value.Nil(), ctx.RuntimeError("dict() expects an iterable of (key, value) tuples")
			}
			if _, err := m.Table.Set(tup.Elements[0], tup.Elements[1]); err != nil {
				return value.Nil(), ctx.RuntimeError("%s", err.Error())
			}
		}
	}
	ctx.Track(m)
	return value.Obj(m), nil
}

// preludeSet builds a Dict-backed set (every key maps to true), since
// spec.md names no dedicated Set heap kind; `in` and iteration over
// it work exactly like a Dict's (GLOSSARY has no separate Set entry).
func preludeSet(ctx value.CallContext, args []value.Value) (value.Value, error) {
	m := &value.MapObj{Table: hashmap.NewTable()}
	if len(args) > 1 {
		elems, err := elementsOf(ctx, args[1])
		if err != nil {
			return value.Nil(), err
		}
		for _, e := range elems {
			if _, err := m.Table.Set(e, value.Bool(true)); err != nil {
				return value.Nil(), ctx.RuntimeError("%s", err.Error())
			}
		}
	}
	ctx.Track(m)
	return value.Obj(m), nil
}
