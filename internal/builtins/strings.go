// Package builtins populates the VM's built-in singleton classes
// (String, List, Tuple, Dict, ByteArray, File) with their native
// methods, grounded on the reference implementation's
// mtots_class_*.c/mtots_class_*_impl.h files (see original_source in
// the retrieval pack). Every method here follows the receiver-slot
// convention established in internal/vm/calls.go: args[0] is always
// the receiver, args[1:] the real call arguments.
package builtins

import (
	"strings"

	"github.com/mtots-lang/mtots/internal/value"
)

func strGetItem(ctx value.CallContext, args []value.Value) (value.Value, error) {
	str := args[0].Str
	runes := []rune(str.Value)
	index := int(args[1].Num)
	if index < 0 {
		index += len(runes)
	}
	if index < 0 || index >= len(runes) {
		return value.Nil(), ctx.RuntimeError("String index out of bounds")
	}
	return value.Str(ctx.Intern(string(runes[index]))), nil
}

func strSlice(ctx value.CallContext, args []value.Value) (value.Value, error) {
	str := args[0].Str
	runes := []rune(str.Value)
	lower, upper := 0, len(runes)
	if !args[1].IsNil() {
		lower = int(args[1].Num)
	}
	if lower < 0 {
		lower += len(runes)
	}
	if lower < 0 || lower > len(runes) {
		return value.Nil(), ctx.RuntimeError("Lower slice index out of bounds")
	}
	if !args[2].IsNil() {
		upper = int(args[2].Num)
	}
	if upper < 0 {
		upper += len(runes)
	}
	if upper < lower || upper > len(runes) {
		return value.Nil(), ctx.RuntimeError("Upper slice index out of bounds")
	}
	return value.Str(ctx.Intern(string(runes[lower:upper]))), nil
}

// strMod implements `fmt % [args...]`: %s formats with str(), %r with
// repr()-style Inspect, %% is a literal percent (reference implStrMod).
func strMod(ctx value.CallContext, args []value.Value) (value.Value, error) {
	fmtStr := args[0].Str.Value
	list, ok := args[1].ObjectOf().(*value.List)
	if !ok {
		return value.Nil(), ctx.RuntimeError("Expected List as argument to String.__mod__()")
	}
	var b strings.Builder
	j := 0
	runes := []rune(fmtStr)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '%' {
			b.WriteRune(runes[i])
			continue
		}
		i++
		if i >= len(runes) {
			break
		}
		switch runes[i] {
		case '%':
			b.WriteByte('%')
		case 's', 'r':
			if j >= len(list.Elements) {
				return value.Nil(), ctx.RuntimeError("Not enough arguments for format string")
			}
			item := list.Elements[j]
			j++
			if runes[i] == 's' {
				b.WriteString(item.Inspect())
			} else {
				b.WriteString(reprOf(item))
			}
		default:
			return value.Nil(), ctx.RuntimeError("Invalid format indicator '%%%c'", runes[i])
		}
	}
	if j < len(list.Elements) {
		return value.Nil(), ctx.RuntimeError("Too many arguments for format string")
	}
	return value.Str(ctx.Intern(b.String())), nil
}

func reprOf(v value.Value) string {
	if v.IsString() {
		return "'" + v.Str.Value + "'"
	}
	return v.Inspect()
}

const defaultStripSet = " \t\r\n"

func strStrip(ctx value.CallContext, args []value.Value) (value.Value, error) {
	str := args[0].Str.Value
	cutset := defaultStripSet
	if len(args) > 1 {
		cutset = args[1].Str.Value
	}
	return value.Str(ctx.Intern(strings.Trim(str, cutset))), nil
}

func strReplace(ctx value.CallContext, args []value.Value) (value.Value, error) {
	orig := args[0].Str.Value
	old := args[1].Str.Value
	replacement := args[2].Str.Value
	return value.Str(ctx.Intern(strings.ReplaceAll(orig, old, replacement))), nil
}

func strJoin(ctx value.CallContext, args []value.Value) (value.Value, error) {
	sep := args[0].Str.Value
	list, ok := args[1].ObjectOf().(*value.List)
	if !ok {
		return value.Nil(), ctx.RuntimeError("String.join() requires a list argument")
	}
	parts := make([]string, len(list.Elements))
	for i, el := range list.Elements {
		if !el.IsString() {
			return value.Nil(), ctx.RuntimeError(
				"String.join() requires a list of strings, but found %s in the list", el.TypeName())
		}
		parts[i] = el.Str.Value
	}
	return value.Str(ctx.Intern(strings.Join(parts, sep))), nil
}

func strSplit(ctx value.CallContext, args []value.Value) (value.Value, error) {
	s := args[0].Str.Value
	sep := args[1].Str.Value
	var parts []string
	if sep == "" {
		parts = strings.Fields(s)
	} else {
		parts = strings.Split(s, sep)
	}
	elems := make([]value.Value, len(parts))
	for i, p := range parts {
		elems[i] = value.Str(ctx.Intern(p))
	}
	list := value.NewList(elems)
	ctx.Track(list)
	return value.Obj(list), nil
}

// RegisterString populates the built-in String class's method table
// (reference initStringClass).
func RegisterString(cls *value.Class) {
	def := func(name string, min, max int, patterns []value.TypePattern, body func(value.CallContext, []value.Value) (value.Value, error)) {
		cls.Methods[name] = value.Fn(&value.CFunction{
			Name: name, MinArity: min, MaxArity: max, Params: patterns, Body: body,
		})
	}
	def("__getitem__", 1, 1, []value.TypePattern{{Kind: value.PatternNumber}}, strGetItem)
	def("__slice__", 2, 2, nil, strSlice)
	def("__mod__", 1, 1, []value.TypePattern{{Kind: value.PatternList}}, strMod)
	def("strip", 0, 1, []value.TypePattern{{Kind: value.PatternString}}, strStrip)
	def("replace", 2, 2, []value.TypePattern{{Kind: value.PatternString}, {Kind: value.PatternString}}, strReplace)
	def("join", 1, 1, []value.TypePattern{{Kind: value.PatternList}}, strJoin)
	def("split", 1, 1, []value.TypePattern{{Kind: value.PatternString}}, strSplit)
}
