package vm

import (
	"fmt"
	"math"

	"github.com/mtots-lang/mtots/internal/compiler"
	"github.com/mtots-lang/mtots/internal/hashmap"
	"github.com/mtots-lang/mtots/internal/value"
)

// run executes bytecode until a frame at depth returnFrameCount
// returns, yielding that call's result (reference run(), restructured
// around Go's labeled continue instead of C's goto loop; the
// RETURN_RUNTIME_ERROR macro becomes the fail()/recoverTry() pair:
// every fallible opcode calls fail() and, on failure, either resumes
// at the innermost open try block or aborts the whole run with the
// formatted error).
func (vm *VM) run(returnFrameCount int) (value.Value, error) {
	frame := &vm.frames[vm.frameCount-1]

	fail := func() (value.Value, bool) {
		if !vm.recoverTry() {
			return value.Nil(), false
		}
		frame = &vm.frames[vm.frameCount-1]
		return value.Value{}, true
	}

dispatch:
	for {
		op := compiler.OpCode(vm.readByte(frame))
		switch op {
		case compiler.OpConstant:
			vm.push(vm.readConstant(frame))

		case compiler.OpNil:
			vm.push(value.Nil())
		case compiler.OpTrue:
			vm.push(value.Bool(true))
		case compiler.OpFalse:
			vm.push(value.Bool(false))
		case compiler.OpPop:
			vm.pop()

		case compiler.OpGetLocal:
			slot := vm.readByte(frame)
			vm.push(vm.stack[frame.slotsBase+int(slot)])
		case compiler.OpSetLocal:
			slot := vm.readByte(frame)
			vm.stack[frame.slotsBase+int(slot)] = vm.peek(0)

		case compiler.OpGetGlobal:
			name := vm.readString(frame)
			v, ok := frame.closure.Module.Fields[name.Value]
			if !ok {
				vm.raise("Undefined variable '%s'", name.Value)
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
			vm.push(v)
		case compiler.OpDefineGlobal:
			name := vm.readString(frame)
			frame.closure.Module.Fields[name.Value] = vm.peek(0)
			vm.pop()
		case compiler.OpSetGlobal:
			name := vm.readString(frame)
			if _, ok := frame.closure.Module.Fields[name.Value]; !ok {
				vm.raise("Undefined variable '%s'", name.Value)
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
			frame.closure.Module.Fields[name.Value] = vm.peek(0)

		case compiler.OpGetUpvalue:
			slot := vm.readByte(frame)
			vm.push(vm.upvalueValue(frame.closure.Upvalues[slot]))
		case compiler.OpSetUpvalue:
			slot := vm.readByte(frame)
			vm.setUpvalueValue(frame.closure.Upvalues[slot], vm.peek(0))

		case compiler.OpGetField:
			if !vm.execGetField(frame) {
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
		case compiler.OpSetField:
			if !vm.execSetField(frame) {
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}

		case compiler.OpIs:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(a.Is(b)))
		case compiler.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(value.ValuesEqual(a, b)))
		case compiler.OpGreater:
			less, err := vm.valueLessThan(vm.peek(0), vm.peek(1))
			if err != nil {
				vm.raise("%s", err.Error())
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
			vm.pop()
			vm.pop()
			vm.push(value.Bool(less))
		case compiler.OpLess:
			less, err := vm.valueLessThan(vm.peek(1), vm.peek(0))
			if err != nil {
				vm.raise("%s", err.Error())
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
			vm.pop()
			vm.pop()
			vm.push(value.Bool(less))

		case compiler.OpAdd:
			if vm.peek(0).IsString() && vm.peek(1).IsString() {
				vm.concatenate()
			} else if vm.peek(0).IsNumber() && vm.peek(1).IsNumber() {
				b := vm.pop().Num
				a := vm.pop().Num
				vm.push(value.Number(a + b))
			} else {
				vm.raise("Operands must be two numbers or two strings")
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
		case compiler.OpSubtract:
			if !vm.binaryNumOp(func(a, b float64) float64 { return a - b }) {
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
		case compiler.OpMultiply:
			if vm.peek(0).IsNumber() && vm.peek(1).IsNumber() {
				b := vm.pop().Num
				a := vm.pop().Num
				vm.push(value.Number(a * b))
			} else {
				if !vm.invoke(vm.mulString, 1) {
					if r, recovered := fail(); !recovered {
						return r, vm.finalError()
					}
					continue dispatch
				}
				frame = &vm.frames[vm.frameCount-1]
			}
		case compiler.OpDivide:
			if !vm.binaryNumOp(func(a, b float64) float64 { return a / b }) {
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
		case compiler.OpFloorDivide:
			if !vm.binaryNumOp(func(a, b float64) float64 { return math.Floor(a / b) }) {
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
		case compiler.OpModulo:
			if vm.peek(0).IsNumber() && vm.peek(1).IsNumber() {
				b := vm.pop().Num
				a := vm.pop().Num
				vm.push(value.Number(math.Mod(a, b)))
			} else {
				if !vm.invoke(vm.modString, 1) {
					if r, recovered := fail(); !recovered {
						return r, vm.finalError()
					}
					continue dispatch
				}
				frame = &vm.frames[vm.frameCount-1]
			}

		case compiler.OpShiftLeft:
			if !vm.binaryBitwiseOp(func(a, b uint32) uint32 { return a << b }) {
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
		case compiler.OpShiftRight:
			if !vm.binaryBitwiseOp(func(a, b uint32) uint32 { return a >> b }) {
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
		case compiler.OpBitwiseOr:
			if !vm.binaryBitwiseOp(func(a, b uint32) uint32 { return a | b }) {
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
		case compiler.OpBitwiseAnd:
			if !vm.binaryBitwiseOp(func(a, b uint32) uint32 { return a & b }) {
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
		case compiler.OpBitwiseXor:
			if !vm.binaryBitwiseOp(func(a, b uint32) uint32 { return a ^ b }) {
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
		case compiler.OpBitwiseNot:
			if !vm.peek(0).IsNumber() {
				vm.raise("Operand must be a number")
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
			x := uint32(int64(vm.pop().Num))
			vm.push(value.Number(float64(^x)))

		case compiler.OpIn:
			if cls, ok := vm.peek(0).ObjectOf().(*value.Class); ok {
				vm.pop()
				receiver := vm.pop()
				vm.push(value.Bool(vm.getClassOfValue(receiver) == cls))
			} else {
				b := vm.pop()
				a := vm.pop()
				vm.push(b)
				vm.push(a)
				if !vm.invoke(vm.containsString, 1) {
					if r, recovered := fail(); !recovered {
						return r, vm.finalError()
					}
					continue dispatch
				}
				frame = &vm.frames[vm.frameCount-1]
			}
		case compiler.OpNot:
			vm.push(value.Bool(isFalsey(vm.pop())))
		case compiler.OpNegate:
			if !vm.peek(0).IsNumber() {
				vm.raise("Operand must be a number")
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
			vm.push(value.Number(-vm.pop().Num))

		case compiler.OpJump:
			offset := vm.readShort(frame)
			frame.ip += offset
		case compiler.OpJumpIfFalse:
			offset := vm.readShort(frame)
			if isFalsey(vm.peek(0)) {
				frame.ip += offset
			}
		case compiler.OpJumpIfStopIteration:
			offset := vm.readShort(frame)
			if top := vm.peek(0); top.Kind == value.KSentinel && top.Sent == value.SentinelStopIteration {
				frame.ip += offset
			}
		case compiler.OpLoop:
			offset := vm.readShort(frame)
			frame.ip -= offset

		case compiler.OpTryStart:
			offset := vm.readShort(frame)
			vm.pushTrySnapshot(frame, frame.ip+offset)
		case compiler.OpTryEnd:
			offset := vm.readShort(frame)
			frame.ip += offset
			vm.popTrySnapshot()
		case compiler.OpRaise:
			if !vm.peek(0).IsString() {
				panic("mtots: only strings can be raised right now")
			}
			vm.raise("%s", vm.peek(0).Str.Value)
			if r, recovered := fail(); !recovered {
				return r, vm.finalError()
			}
			continue dispatch

		case compiler.OpGetIter:
			if !isIterator(vm.peek(0)) {
				if !vm.invoke(vm.iterString, 0) {
					if r, recovered := fail(); !recovered {
						return r, vm.finalError()
					}
					continue dispatch
				}
				frame = &vm.frames[vm.frameCount-1]
			}
		case compiler.OpGetNext:
			vm.push(vm.peek(0))
			if !vm.callValue(vm.peek(0), 0) {
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
			frame = &vm.frames[vm.frameCount-1]

		case compiler.OpCall:
			argCount := int(vm.readByte(frame))
			if !vm.callValue(vm.peek(argCount), argCount) {
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
			frame = &vm.frames[vm.frameCount-1]
		case compiler.OpInvoke:
			method := vm.readString(frame)
			argCount := int(vm.readByte(frame))
			if !vm.invoke(method, argCount) {
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
			frame = &vm.frames[vm.frameCount-1]
		case compiler.OpSuperInvoke:
			method := vm.readString(frame)
			argCount := int(vm.readByte(frame))
			superclass, _ := vm.pop().ObjectOf().(*value.Class)
			if !vm.invokeFromClass(superclass, method, argCount) {
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
			frame = &vm.frames[vm.frameCount-1]

		case compiler.OpClosure:
			proto, _ := vm.readConstant(frame).ObjectOf().(*value.FunctionProto)
			closure := &value.Closure{Proto: proto, Module: frame.closure.Module,
				Upvalues: make([]*value.Upvalue, proto.UpvalueCount)}
			vm.track(closure)
			vm.push(value.Obj(closure))
			for i := 0; i < proto.UpvalueCount; i++ {
				isLocal := vm.readByte(frame)
				index := int(vm.readByte(frame))
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.slotsBase + index)
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}
		case compiler.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case compiler.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.slotsBase)
			vm.frameCount--
			if vm.frameCount == returnFrameCount {
				vm.stackTop = frame.slotsBase
				return result, nil
			}
			vm.stackTop = frame.slotsBase
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]

		case compiler.OpImport:
			name := vm.readString(frame)
			if !vm.importModule(name.Value) {
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}

		case compiler.OpNewList:
			length := int(vm.readByte(frame))
			start := vm.stackTop - length
			elems := append([]value.Value(nil), vm.stack[start:vm.stackTop]...)
			list := &value.List{Elements: elems}
			vm.stackTop = start
			vm.track(list)
			vm.push(value.Obj(list))
		case compiler.OpNewDict:
			length := int(vm.readByte(frame))
			start := vm.stackTop - 2*length
			pairs := append([]value.Value(nil), vm.stack[start:vm.stackTop]...)
			tbl := hashmap.NewTable()
			m := &value.MapObj{Table: tbl}
			vm.stackTop = start
			vm.track(m)
			vm.push(value.Obj(m))
			for i := 0; i < length; i++ {
				if _, err := tbl.Set(pairs[2*i], pairs[2*i+1]); err != nil {
					vm.pop()
					vm.stackTop = start
					vm.raise("%s", err.Error())
					if r, recovered := fail(); !recovered {
						return r, vm.finalError()
					}
					continue dispatch
				}
			}

		case compiler.OpClass:
			name := vm.readString(frame)
			cls := &value.Class{Name: name.Value, Methods: value.MethodTable{}, Statics: value.MethodTable{}}
			vm.track(cls)
			vm.push(value.Obj(cls))
		case compiler.OpInherit:
			superclass, ok := vm.peek(1).ObjectOf().(*value.Class)
			if !ok {
				vm.raise("Superclass must be a class")
				if r, recovered := fail(); !recovered {
					return r, vm.finalError()
				}
				continue dispatch
			}
			subclass := vm.peek(0).ObjectOf().(*value.Class)
			for k, v := range superclass.Methods {
				subclass.Methods[k] = v
			}
			subclass.Superclass = superclass
			vm.pop()
		case compiler.OpMethod:
			name := vm.readString(frame)
			method := vm.pop()
			cls := vm.peek(0).ObjectOf().(*value.Class)
			cls.Methods[name.Value] = method

		default:
			panic(fmt.Sprintf("mtots: unhandled opcode %s", op))
		}
	}
}

func (vm *VM) finalError() error {
	return fmt.Errorf("%s", vm.lastError)
}

func (vm *VM) binaryNumOp(f func(a, b float64) float64) bool {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.raise("Operands must be numbers")
	}
	b := vm.pop().Num
	a := vm.pop().Num
	vm.push(value.Number(f(a, b)))
	return true
}

func (vm *VM) binaryBitwiseOp(f func(a, b uint32) uint32) bool {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.raise("Operands must be numbers")
	}
	b := uint32(int64(vm.pop().Num))
	a := uint32(int64(vm.pop().Num))
	vm.push(value.Number(float64(f(a, b))))
	return true
}

func (vm *VM) upvalueValue(uv *value.Upvalue) value.Value {
	if uv.Location >= 0 {
		return vm.stack[uv.Location]
	}
	return uv.Closed
}

func (vm *VM) setUpvalueValue(uv *value.Upvalue, v value.Value) {
	if uv.Location >= 0 {
		vm.stack[uv.Location] = v
	} else {
		uv.Closed = v
	}
}

func (vm *VM) captureUpvalue(localIdx int) *value.Upvalue {
	var prev *value.Upvalue
	uv := vm.openUpvalues
	for uv != nil && uv.Location > localIdx {
		prev = uv
		uv = uv.NextUpvalue()
	}
	if uv != nil && uv.Location == localIdx {
		return uv
	}
	created := &value.Upvalue{Location: localIdx}
	vm.track(created)
	created.SetNextUpvalue(uv)
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.SetNextUpvalue(created)
	}
	return created
}

func (vm *VM) closeUpvalues(last int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Location >= last {
		uv := vm.openUpvalues
		uv.Closed = vm.stack[uv.Location]
		uv.Location = -1
		vm.openUpvalues = uv.NextUpvalue()
	}
}
