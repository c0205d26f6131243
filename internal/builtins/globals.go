package builtins

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/mtots-lang/mtots/internal/value"
)

// Globals names the always-present free functions and sentinel every
// module starts with, distinct from the prelude's hoisted collection
// helpers (sorted/list/tuple/dict/set live in internal/importer):
// print, range, str, repr, chr, ord, open, float, int, abs, sin, cos,
// tan and the StopIteration sentinel, grounded on the reference's
// defineGlobal calls in mtots_globals.c. Built-in class-name globals
// (Number, String, List, ...) are seeded separately by internal/vm,
// which is the only package holding the class objects themselves.
func Globals() map[string]*value.CFunction {
	return map[string]*value.CFunction{
		"print": {Name: "print", MinArity: 1, MaxArity: 1, Body: globalPrint},
		"range": {Name: "range", MinArity: 1, MaxArity: 3, Body: globalRange},
		"str":   {Name: "str", MinArity: 1, MaxArity: 1, Body: globalStr},
		"repr":  {Name: "repr", MinArity: 1, MaxArity: 1, Body: globalRepr},
		"chr":   {Name: "chr", MinArity: 1, MaxArity: 1, Params: []value.TypePattern{{Kind: value.PatternNumber}}, Body: globalChr},
		"ord":   {Name: "ord", MinArity: 1, MaxArity: 1, Params: []value.TypePattern{{Kind: value.PatternString}}, Body: globalOrd},
		"open":  {Name: "open", MinArity: 1, MaxArity: 2, Body: globalOpen},
		"float": {Name: "float", MinArity: 1, MaxArity: 1, Body: globalFloat},
		"int":   {Name: "int", MinArity: 1, MaxArity: 1, Body: globalInt},
		"abs":   {Name: "abs", MinArity: 1, MaxArity: 1, Params: []value.TypePattern{{Kind: value.PatternNumber}}, Body: globalAbs},
		"sin":   {Name: "sin", MinArity: 1, MaxArity: 1, Params: []value.TypePattern{{Kind: value.PatternNumber}}, Body: trig(math.Sin)},
		"cos":   {Name: "cos", MinArity: 1, MaxArity: 1, Params: []value.TypePattern{{Kind: value.PatternNumber}}, Body: trig(math.Cos)},
		"tan":   {Name: "tan", MinArity: 1, MaxArity: 1, Params: []value.TypePattern{{Kind: value.PatternNumber}}, Body: trig(math.Tan)},
		"frozendict": {Name: "frozendict", MinArity: 1, MaxArity: 1, Params: []value.TypePattern{{Kind: value.PatternDict}}, Body: globalFrozenDict},
	}
}

// globalFrozenDict builds the canonical, interned FrozenMap structurally
// equal to the given Dict's current contents (spec §3's frozen-map
// variant; invariant 2 applies to it exactly as it does to Tuple). This
// is the only constructor for *value.FrozenMap — the reference
// implementation's `final{...}` literal reprs to the same shape
// (original_source/src/mtots_ops.c), but Mtots' compiler has no
// dedicated frozen-dict display, so construction goes through this
// global instead, mirroring how `tuple(...)` turns a List into an
// interned Tuple rather than needing its own literal syntax. Named
// lowercase, like the prelude's `list`/`tuple`/`dict`/`set`
// constructors, to leave the capitalized `FrozenDict` global bound to
// the class object (for `in`/isinstance checks) rather than shadow it —
// seedCoreGlobals seeds both from two different maps, and a collision
// would silently drop whichever lost the race.
func globalFrozenDict(ctx value.CallContext, args []value.Value) (value.Value, error) {
	d := args[1].ObjectOf().(*value.MapObj)
	keys := make([]value.Value, 0, d.Table.Len())
	vals := make([]value.Value, 0, d.Table.Len())
	d.Table.Each(func(k, v value.Value) {
		keys = append(keys, k)
		vals = append(vals, v)
	})
	fm, err := ctx.InternFrozenMap(keys, vals)
	if err != nil {
		return value.Nil(), err
	}
	return value.Obj(fm), nil
}

// globalPrint writes args[1]'s str()-converted form followed by a
// newline (reference implPrint, which always routes through str()
// rather than Inspect so user __str__ overrides are honored — Mtots'
// Go value model, though, has no __str__ hook yet, so this currently
// coincides with Inspect for every built-in kind).
func globalPrint(ctx value.CallContext, args []value.Value) (value.Value, error) {
	s, err := globalStr(ctx, args)
	if err != nil {
		return value.Nil(), err
	}
	fmt.Println(s.Str.Value)
	return value.Nil(), nil
}

type rangeIterState struct {
	current, stop, step float64
}

func rangeIter(ctx value.CallContext, start, stop, step float64) *value.NativeClosure {
	state := &rangeIterState{current: start, stop: stop, step: step}
	nc := &value.NativeClosure{
		Name:     "rangeiter",
		Arity:    0,
		MaxArity: 0,
		State:    state,
		Body: func(args []value.Value) (value.Value, error) {
			st := state
			if st.step >= 0 {
				if st.current >= st.stop {
					return value.Sent(value.SentinelStopIteration), nil
				}
			} else if st.current <= st.stop {
				return value.Sent(value.SentinelStopIteration), nil
			}
			v := value.Number(st.current)
			st.current += st.step
			return v, nil
		},
	}
	ctx.Track(nc)
	return nc
}

// globalRange implements range(stop) / range(start, stop) /
// range(start, stop, step), returning a zero-arg callable iterator
// (reference implRange + newRangeIterator).
func globalRange(ctx value.CallContext, args []value.Value) (value.Value, error) {
	nums := args[1:]
	start, step := 0.0, 1.0
	var stop float64
	switch len(nums) {
	case 1:
		stop = nums[0].Num
	case 2:
		start, stop = nums[0].Num, nums[1].Num
	case 3:
		start, stop, step = nums[0].Num, nums[1].Num, nums[2].Num
	default:
		return value.Nil(), ctx.RuntimeError("Invalid argument count to range() (%d)", len(nums))
	}
	for i, n := range nums {
		if !n.IsNumber() {
			return value.Nil(), ctx.RuntimeError("range() requires number arguments but got %s for argument %d", n.TypeName(), i)
		}
	}
	return value.Obj(rangeIter(ctx, start, stop, step)), nil
}

// globalRepr always produces the quoted, debug-oriented rendering
// (reference implRepr via valueRepr).
func globalRepr(ctx value.CallContext, args []value.Value) (value.Value, error) {
	return value.Str(ctx.Intern(reprOf(args[1]))), nil
}

// globalStr passes strings through unchanged and falls back to repr()
// for everything else (reference implStr).
func globalStr(ctx value.CallContext, args []value.Value) (value.Value, error) {
	if args[1].IsString() {
		return args[1], nil
	}
	return globalRepr(ctx, args)
}

func globalChr(ctx value.CallContext, args []value.Value) (value.Value, error) {
	return value.Str(ctx.Intern(string(rune(int(args[1].Num))))), nil
}

func globalOrd(ctx value.CallContext, args []value.Value) (value.Value, error) {
	runes := []rune(args[1].Str.Value)
	if len(runes) != 1 {
		return value.Nil(), ctx.RuntimeError("ord() requires a string of length 1 but got a string of length %d", len(runes))
	}
	return value.Number(float64(runes[0])), nil
}

// globalOpen opens a file by path and mode ("r", "w", "a", "rb", "wb",
// "ab" — default "r"), returning the File heap object the VM dispatches
// File-class methods against by kind alone (reference implOpen).
func globalOpen(ctx value.CallContext, args []value.Value) (value.Value, error) {
	name := args[1].Str.Value
	mode := "r"
	if len(args) > 2 {
		mode = args[2].Str.Value
	}
	var flag int
	switch mode {
	case "r", "rb":
		flag = os.O_RDONLY
	case "w", "wb":
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case "a", "ab":
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	default:
		return value.Nil(), ctx.RuntimeError("Invalid mode string %s", mode)
	}
	handle, err := os.OpenFile(name, flag, 0644)
	if err != nil {
		return value.Nil(), ctx.RuntimeError("Could not open file '%s': %s", name, err.Error())
	}
	f := &value.File{Name: name, Mode: mode, IsOpen: true, Handle: handle}
	ctx.Track(f)
	return value.Obj(f), nil
}

func globalFloat(ctx value.CallContext, args []value.Value) (value.Value, error) {
	arg := args[1]
	if arg.IsNumber() {
		return arg, nil
	}
	if arg.IsString() {
		n, err := strconv.ParseFloat(arg.Str.Value, 64)
		if err != nil {
			return value.Nil(), ctx.RuntimeError("Could not convert string to float: %s", arg.Str.Value)
		}
		return value.Number(n), nil
	}
	return value.Nil(), ctx.RuntimeError("%s is not convertible to float", arg.TypeName())
}

func globalInt(ctx value.CallContext, args []value.Value) (value.Value, error) {
	arg := args[1]
	if arg.IsNumber() {
		return value.Number(math.Trunc(arg.Num)), nil
	}
	if arg.IsString() {
		n, err := strconv.ParseFloat(arg.Str.Value, 64)
		if err != nil {
			return value.Nil(), ctx.RuntimeError("Could not convert string to int: %s", arg.Str.Value)
		}
		return value.Number(math.Trunc(n)), nil
	}
	return value.Nil(), ctx.RuntimeError("%s is not convertible to int", arg.TypeName())
}

func globalAbs(ctx value.CallContext, args []value.Value) (value.Value, error) {
	return value.Number(math.Abs(args[1].Num)), nil
}

func trig(f func(float64) float64) func(value.CallContext, []value.Value) (value.Value, error) {
	return func(ctx value.CallContext, args []value.Value) (value.Value, error) {
		return value.Number(f(args[1].Num)), nil
	}
}
