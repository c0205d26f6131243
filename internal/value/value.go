// Package value implements Mtots' tagged Value union and the heap
// object hierarchy it can point to (strings, tuples, lists, maps,
// frozen maps, closures, classes, instances, native opaque objects).
//
// The tagging strategy mirrors the teacher's vm.Value (internal/vm/value.go
// in funvibe/funxy): a small struct carrying a type byte, an inline
// 64-bit payload for primitives, and a pointer for everything else —
// rather than a boxed interface{} for every value, which would defeat
// the point of a hand-rolled collector.
package value

import (
	"fmt"
	"math"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KNil Kind = iota
	KBool
	KNumber
	KString   // interned; Str holds *String
	KCFunction
	KOperator // the first-class `len` operator value
	KSentinel
	KObject // heap object; Obj holds Object
)

// Operator enumerates first-class built-in operator values. Today
// there is exactly one: `len`.
type Operator uint8

const OpLen Operator = 0

// Sentinel enumerates internal non-values.
type Sentinel uint8

const (
	SentinelStopIteration Sentinel = iota
	SentinelEmptyKey               // internal-only: marks empty/tombstone map slots
)

func (s Sentinel) String() string {
	if s == SentinelStopIteration {
		return "StopIteration"
	}
	return "<EmptyKey>"
}

// Value is Mtots' tagged-union runtime value.
type Value struct {
	Kind Kind
	Num  float64
	Str  *String
	Op   Operator
	Sent Sentinel
	CFn  *CFunction
	Obj  Object
}

// Object is the interface every heap-allocated, GC-tracked value
// implements. ObjType identifies the concrete variant without a type
// switch on every access. Marking, tracing and freeing are done by
// internal/gc, not through methods of this interface.
type Object interface {
	ObjType() ObjType
	Inspect() string
}

// ObjType tags heap object variants (component A's "heap object header").
type ObjType uint8

const (
	ObjClass ObjType = iota
	ObjClosure
	ObjFunctionProto
	ObjNativeClosure
	ObjInstance
	ObjBuffer
	ObjList
	ObjTuple
	ObjMap
	ObjFrozenMap
	ObjFile
	ObjNative
	ObjUpvalue
	ObjModule
)

func Nil() Value           { return Value{Kind: KNil} }
func Bool(b bool) Value    { return Value{Kind: KBool, Num: boolToFloat(b)} }
func Number(n float64) Value { return Value{Kind: KNumber, Num: n} }
func Str(s *String) Value  { return Value{Kind: KString, Str: s} }
func Sent(s Sentinel) Value { return Value{Kind: KSentinel, Sent: s} }
func Op(o Operator) Value   { return Value{Kind: KOperator, Op: o} }
func Fn(f *CFunction) Value { return Value{Kind: KCFunction, CFn: f} }
func Obj(o Object) Value    { return Value{Kind: KObject, Obj: o} }

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (v Value) IsNil() bool    { return v.Kind == KNil }
func (v Value) AsBool() bool   { return v.Kind == KBool && v.Num != 0 }
func (v Value) IsBool() bool   { return v.Kind == KBool }
func (v Value) IsNumber() bool { return v.Kind == KNumber }
func (v Value) IsString() bool { return v.Kind == KString }
func (v Value) IsObject() bool { return v.Kind == KObject }

// Truthy implements spec §4.F: nil, false, and numeric zero are
// falsy; everything else (including empty collections) is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KNil:
		return false
	case KBool:
		return v.Num != 0
	case KNumber:
		return v.Num != 0
	default:
		return true
	}
}

// ObjectOf returns the heap object stored in v, or nil for non-object
// kinds. Strings are interned but are not part of the collected object
// graph in the same sense (see String), so they are excluded here.
func (v Value) ObjectOf() Object {
	if v.Kind == KObject {
		return v.Obj
	}
	return nil
}

// Is reports whether two values are identical (reference/value
// identity, not structural equality). For interned strings, tuples,
// and frozen maps, identity IS structural equality (invariants 1-2).
func (v Value) Is(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KNil:
		return true
	case KBool:
		return v.Num == other.Num
	case KNumber:
		return v.Num == other.Num
	case KString:
		return v.Str == other.Str
	case KOperator:
		return v.Op == other.Op
	case KSentinel:
		return v.Sent == other.Sent
	case KCFunction:
		return v.CFn == other.CFn
	case KObject:
		return v.Obj == other.Obj
	}
	return false
}

func (v Value) TypeName() string {
	switch v.Kind {
	case KNil:
		return "NilType"
	case KBool:
		return "Bool"
	case KNumber:
		return "Number"
	case KString:
		return "String"
	case KCFunction:
		return "Function"
	case KOperator:
		return "Operator"
	case KSentinel:
		return "Sentinel"
	case KObject:
		if v.Obj == nil {
			return "NilType"
		}
		return objTypeName(v.Obj.ObjType())
	}
	return "?"
}

func objTypeName(t ObjType) string {
	switch t {
	case ObjClass:
		return "Class"
	case ObjClosure, ObjFunctionProto, ObjNativeClosure:
		return "Function"
	case ObjInstance:
		return "Instance"
	case ObjBuffer:
		return "ByteArray"
	case ObjList:
		return "List"
	case ObjTuple:
		return "Tuple"
	case ObjMap:
		return "Dict"
	case ObjFrozenMap:
		return "FrozenDict"
	case ObjFile:
		return "File"
	case ObjNative:
		return "Native"
	case ObjUpvalue:
		return "<upvalue>"
	case ObjModule:
		return "Module"
	}
	return "?"
}

// Inspect returns the REPL/`str()` representation of v.
func (v Value) Inspect() string {
	switch v.Kind {
	case KNil:
		return "nil"
	case KBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case KNumber:
		return formatNumber(v.Num)
	case KString:
		return v.Str.Value
	case KOperator:
		return "<operator len>"
	case KSentinel:
		return v.Sent.String()
	case KCFunction:
		return fmt.Sprintf("<native fn %s>", v.CFn.Name)
	case KObject:
		if v.Obj == nil {
			return "nil"
		}
		return v.Obj.Inspect()
	}
	return "?"
}

func formatNumber(n float64) string {
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	if math.IsNaN(n) {
		return "nan"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

// CFunction is a static native function descriptor: a Go function
// pointer plus an arity window and per-argument TypePatterns, matching
// the native-module contract in spec §6.
type CFunction struct {
	Name      string
	MinArity  int
	MaxArity  int // -1 means variadic
	Params    []TypePattern
	Body      func(vm CallContext, args []Value) (Value, error)
}

// TypePattern constrains an argument's admissible kinds, used by the
// cfunction call-dispatch path to validate arguments before Body runs.
type TypePatternKind uint8

const (
	PatternAny TypePatternKind = iota
	PatternNumber
	PatternString
	PatternStringOrNil
	PatternByteArray
	PatternByteArrayOrView
	PatternBool
	PatternList
	PatternListOrNil
	PatternDict
	PatternClass
	PatternNative
	PatternNativeOrNil
)

type TypePattern struct {
	Kind          TypePatternKind
	NativeDescriptor *NativeDescriptor
}

// CallContext is the minimal surface a CFunction body needs from the
// VM: raising errors and re-entering the call machinery (Call). The
// concrete implementation is
// internal/vm.VM; this interface exists so internal/value does not
// import internal/vm (which imports internal/value).
type CallContext interface {
	RuntimeError(format string, args ...interface{}) error
	Call(callee Value, args []Value) (Value, error)
	Push(v Value)
	Pop() Value
	Track(o Tracked)
	Intern(s string) *String
	InternTuple(elems []Value) *Tuple
	InternFrozenMap(keys, vals []Value) (*FrozenMap, error)
}
