package vm

import (
	"github.com/mtots-lang/mtots/internal/config"
	"github.com/mtots-lang/mtots/internal/value"
)

// call pushes a new bytecode call frame for closure, applying any
// staged default arguments for missing trailing parameters (reference
// call()). argCount is the number of arguments already sitting on the
// stack above the closure itself.
func (vm *VM) call(closure *value.Closure, argCount int) bool {
	arity := closure.Proto.Arity
	if argCount < arity && argCount+len(closure.Proto.Defaults) >= arity {
		i := 0
		for argCount < arity {
			vm.push(closure.Proto.Defaults[i])
			i++
			argCount++
		}
	}
	if argCount != arity {
		return vm.raise("Expected %d arguments but got %d", arity, argCount)
	}
	if vm.frameCount == config.FramesMax {
		return vm.raise("Stack overflow")
	}
	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.closure = closure
	frame.ip = 0
	frame.slotsBase = vm.stackTop - argCount - 1
	return true
}

// callCFunction dispatches a stateless native function. Convention
// (grounded on the reference's callCFunction, generalized since Go
// has no negative-index "receiver slot" trick): args[0] is always the
// receiver — the invoked method's receiver for OP_INVOKE dispatch, or
// the callee value itself for a bare OP_CALL — and args[1:] are the
// real call arguments that MinArity/MaxArity/Params describe.
func (vm *VM) callCFunction(cfn *value.CFunction, argCount int) bool {
	realArgs := argCount
	if realArgs < cfn.MinArity || (cfn.MaxArity >= 0 && realArgs > cfn.MaxArity) {
		if cfn.MaxArity < 0 || cfn.MaxArity == cfn.MinArity {
			return vm.raise("Function %s expects %d arguments but got %d", cfn.Name, cfn.MinArity, realArgs)
		}
		if realArgs < cfn.MinArity {
			return vm.raise("Function %s expects at least %d arguments but got %d", cfn.Name, cfn.MinArity, realArgs)
		}
		return vm.raise("Function %s expects at most %d arguments but got %d", cfn.Name, cfn.MaxArity, realArgs)
	}
	argsStart := vm.stackTop - argCount
	args := make([]value.Value, argCount+1)
	args[0] = vm.stack[argsStart-1]
	copy(args[1:], vm.stack[argsStart:vm.stackTop])

	for i, pat := range cfn.Params {
		if i >= len(args)-1 {
			break
		}
		if !typePatternMatch(pat, args[i+1]) {
			return vm.raise("%s() expects %s for argument %d, but got %s",
				cfn.Name, typePatternName(pat), i, args[i+1].TypeName())
		}
	}

	result, err := cfn.Body(vm, args)
	if err != nil {
		return vm.raise("%s", err.Error())
	}
	vm.stackTop = argsStart - 1
	vm.push(result)
	return true
}

// callNativeClosure dispatches a bound native method/iterator (its
// State already identifies which receiver it is bound to).
func (vm *VM) callNativeClosure(nc *value.NativeClosure, argCount int) bool {
	if argCount < nc.Arity || (nc.MaxArity > 0 && argCount > nc.MaxArity) {
		if nc.MaxArity == 0 || nc.MaxArity == nc.Arity {
			return vm.raise("Function %s expects %d arguments but got %d", nc.Name, nc.Arity, argCount)
		}
		if argCount < nc.Arity {
			return vm.raise("Function %s expects at least %d arguments but got %d", nc.Name, nc.Arity, argCount)
		}
		return vm.raise("Function %s expects at most %d arguments but got %d", nc.Name, nc.MaxArity, argCount)
	}
	args := append([]value.Value(nil), vm.stack[vm.stackTop-argCount:vm.stackTop]...)
	result, err := nc.Body(args)
	if err != nil {
		return vm.raise("%s", err.Error())
	}
	vm.stackTop -= argCount + 1
	vm.push(result)
	return true
}

// callClass instantiates klass: natively for a class with a
// NativeDescriptor, by erroring for builtin/module classes that don't
// support instantiation, otherwise by allocating an Instance and
// running its __init__ if defined (reference callClass).
func (vm *VM) callClass(klass *value.Class, argCount int) bool {
	if klass.Native != nil {
		if klass.Native.Instantiate == nil {
			return vm.raise("Native class %s does not allow instantiation", klass.Native.Name)
		}
		return vm.callCFunction(klass.Native.Instantiate, argCount)
	}
	if klass.IsBuiltin {
		if klass == vm.ByteArrayClass {
			return vm.callByteArrayClass(argCount)
		}
		return vm.raise("Builtin class %s does not allow instantiation", klass.Name)
	}
	if klass.IsModule {
		return vm.raise("Instantiating module classes is not allowed")
	}
	inst := value.NewInstance(klass)
	vm.track(inst)
	vm.stack[vm.stackTop-argCount-1] = value.Obj(inst)
	if init, ok := klass.Methods[vm.initString.Value]; ok {
		closure, isClosure := init.ObjectOf().(*value.Closure)
		if !isClosure {
			return vm.raise("__init__ must be a function")
		}
		return vm.call(closure, argCount)
	}
	if argCount != 0 {
		return vm.raise("Expected 0 arguments but got %d", argCount)
	}
	return true
}

// callOperator dispatches a first-class operator value; today only
// `len`, which special-cases the built-in aggregate kinds and falls
// back to invoking `__len__` for everything else (reference
// callOperator).
func (vm *VM) callOperator(op value.Operator, argCount int) bool {
	if op != value.OpLen {
		return vm.raise("Unrecognized operator")
	}
	if argCount != 1 {
		return vm.raise("len() requires 1 argument but got %d", argCount)
	}
	receiver := vm.pop()
	vm.pop() // the operator value itself

	switch o := receiver.ObjectOf().(type) {
	case *value.Buffer:
		vm.push(value.Number(float64(len(o.Bytes))))
		return true
	case *value.List:
		vm.push(value.Number(float64(len(o.Elements))))
		return true
	case *value.Tuple:
		vm.push(value.Number(float64(len(o.Elements))))
		return true
	case *value.MapObj:
		vm.push(value.Number(float64(o.Table.Len())))
		return true
	case *value.FrozenMap:
		vm.push(value.Number(float64(len(o.Keys))))
		return true
	}
	if receiver.IsString() {
		vm.push(value.Number(float64(len([]rune(receiver.Str.Value)))))
		return true
	}
	vm.push(receiver)
	return vm.invoke(vm.lenString, 0)
}

// callValue dispatches any callable Value by kind (reference
// callValue).
func (vm *VM) callValue(callee value.Value, argCount int) bool {
	if callee.Kind == value.KCFunction {
		return vm.callCFunction(callee.CFn, argCount)
	}
	if callee.Kind == value.KOperator {
		return vm.callOperator(callee.Op, argCount)
	}
	if obj := callee.ObjectOf(); obj != nil {
		switch o := obj.(type) {
		case *value.Class:
			return vm.callClass(o, argCount)
		case *value.Closure:
			return vm.call(o, argCount)
		case *value.NativeClosure:
			return vm.callNativeClosure(o, argCount)
		}
	}
	return vm.raise("Can only call functions and classes but got %s", callee.TypeName())
}

// invokeFromClass looks up name directly in klass's method table
// (used both by ordinary invoke, and by OP_SUPER_INVOKE which already
// has the starting class in hand).
func (vm *VM) invokeFromClass(klass *value.Class, name *value.String, argCount int) bool {
	method, ok := klass.Methods[name.Value]
	if !ok {
		return vm.raise("Method '%s' not found in '%s'", name.Value, klass.Name)
	}
	return vm.callValue(method, argCount)
}

// invoke resolves the receiver's class and dispatches name on it
// (reference invoke).
func (vm *VM) invoke(name *value.String, argCount int) bool {
	receiver := vm.peek(argCount)
	klass := vm.getClassOfValue(receiver)
	if klass == nil {
		return vm.raise("%s kind does not yet support method calls", receiver.TypeName())
	}
	return vm.invokeFromClass(klass, name, argCount)
}

func typePatternMatch(p value.TypePattern, v value.Value) bool {
	switch p.Kind {
	case value.PatternAny:
		return true
	case value.PatternNumber:
		return v.IsNumber()
	case value.PatternString:
		return v.IsString()
	case value.PatternStringOrNil:
		return v.IsString() || v.IsNil()
	case value.PatternBool:
		return v.IsBool()
	case value.PatternByteArray, value.PatternByteArrayOrView:
		_, ok := v.ObjectOf().(*value.Buffer)
		return ok || (p.Kind == value.PatternByteArrayOrView && v.IsNil())
	case value.PatternList:
		_, ok := v.ObjectOf().(*value.List)
		return ok
	case value.PatternListOrNil:
		_, ok := v.ObjectOf().(*value.List)
		return ok || v.IsNil()
	case value.PatternDict:
		_, ok := v.ObjectOf().(*value.MapObj)
		return ok
	case value.PatternClass:
		_, ok := v.ObjectOf().(*value.Class)
		return ok
	case value.PatternNative:
		_, ok := v.ObjectOf().(*value.NativeOpaque)
		return ok
	case value.PatternNativeOrNil:
		_, ok := v.ObjectOf().(*value.NativeOpaque)
		return ok || v.IsNil()
	}
	return false
}

func typePatternName(p value.TypePattern) string {
	switch p.Kind {
	case value.PatternNumber:
		return "a Number"
	case value.PatternString:
		return "a String"
	case value.PatternStringOrNil:
		return "a String or nil"
	case value.PatternBool:
		return "a Bool"
	case value.PatternByteArray:
		return "a ByteArray"
	case value.PatternByteArrayOrView:
		return "a ByteArray or ByteArrayView"
	case value.PatternList:
		return "a List"
	case value.PatternListOrNil:
		return "a List or nil"
	case value.PatternDict:
		return "a Dict"
	case value.PatternClass:
		return "a Class"
	case value.PatternNative, value.PatternNativeOrNil:
		return "a native value"
	}
	return "any value"
}
