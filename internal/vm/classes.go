package vm

import "github.com/mtots-lang/mtots/internal/value"

// getClassOfValue maps any Value to the Class whose method table
// OP_INVOKE/`len`/`in` dispatch through — the single-lookup, no-mro
// rule of spec §4.A (reference getClassOfValue).
func (vm *VM) getClassOfValue(v value.Value) *value.Class {
	switch v.Kind {
	case value.KNil:
		return vm.NilClass
	case value.KBool:
		return vm.BoolClass
	case value.KNumber:
		return vm.NumberClass
	case value.KString:
		return vm.StringClass
	case value.KCFunction:
		return vm.FunctionClass
	case value.KOperator:
		return vm.OperatorClass
	case value.KSentinel:
		return vm.SentinelClass
	case value.KObject:
		switch o := v.Obj.(type) {
		case *value.Class:
			return vm.ClassClass
		case *value.Closure, *value.NativeClosure:
			return vm.FunctionClass
		case *value.Instance:
			return o.Class
		case *value.Module:
			return o.Class
		case *value.Buffer:
			return vm.ByteArrayClass
		case *value.List:
			return vm.ListClass
		case *value.Tuple:
			return vm.TupleClass
		case *value.MapObj:
			return vm.DictClass
		case *value.FrozenMap:
			return vm.FrozenDictClass
		case *value.File:
			return vm.FileClass
		case *value.NativeOpaque:
			if o.Descriptor != nil {
				return o.Descriptor.Class
			}
		}
	}
	return nil
}

// callByteArrayClass implements the `ByteArray(...)` builtin
// constructor's four accepted argument shapes: an integer size, an
// existing ByteArray to copy, a string's UTF-8 bytes, or a list of
// byte-range numbers (reference callByteArrayClass).
func (vm *VM) callByteArrayClass(argCount int) bool {
	if argCount != 1 {
		return vm.raise("ByteArray() requires exactly one argument")
	}
	arg := vm.peek(0)

	switch {
	case arg.IsNumber():
		buf := &value.Buffer{Bytes: make([]byte, int(arg.Num))}
		vm.track(buf)
		vm.pop()
		vm.pop()
		vm.push(value.Obj(buf))
		return true
	case arg.IsString():
		buf := &value.Buffer{Bytes: []byte(arg.Str.Value)}
		vm.track(buf)
		vm.pop()
		vm.pop()
		vm.push(value.Obj(buf))
		return true
	}
	if other, ok := arg.ObjectOf().(*value.Buffer); ok {
		buf := &value.Buffer{Bytes: append([]byte(nil), other.Bytes...), BigEndian: other.BigEndian}
		vm.track(buf)
		vm.pop()
		vm.pop()
		vm.push(value.Obj(buf))
		return true
	}
	if list, ok := arg.ObjectOf().(*value.List); ok {
		bytes := make([]byte, len(list.Elements))
		for i, item := range list.Elements {
			if !item.IsNumber() {
				return vm.raise("ByteArray() requires a list of numbers, but got list item %s", item.TypeName())
			}
			bytes[i] = byte(int(item.Num))
		}
		buf := &value.Buffer{Bytes: bytes}
		vm.track(buf)
		vm.pop()
		vm.pop()
		vm.push(value.Obj(buf))
		return true
	}
	return vm.raise("ByteArray() expects a number, string or list argument but got %s", arg.TypeName())
}
