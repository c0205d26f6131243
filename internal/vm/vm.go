// Package vm executes the bytecode internal/compiler produces: a
// single-goroutine stack machine with call frames, upvalues, and a
// try/raise control-transfer mechanism, grounded on the reference
// implementation's mtots_vm_impl.h (see original_source in the
// retrieval pack). VM satisfies both value.CallContext (so native
// functions can call back into Mtots code) and gc.Roots (so the
// collector can trace the stack, frames, and globals it owns without
// internal/gc or internal/value importing this package).
package vm

import (
	"fmt"
	"strings"

	"github.com/mtots-lang/mtots/internal/builtins"
	"github.com/mtots-lang/mtots/internal/compiler"
	"github.com/mtots-lang/mtots/internal/config"
	"github.com/mtots-lang/mtots/internal/gc"
	"github.com/mtots-lang/mtots/internal/hashmap"
	"github.com/mtots-lang/mtots/internal/importer"
	"github.com/mtots-lang/mtots/internal/value"
)

// callFrame is one active call's bookkeeping: its closure, the byte
// offset of the next instruction, and the index into vm.stack where
// its locals begin (reference CallFrame, minus the raw-pointer ip —
// Go arrays don't move, but we still prefer an int offset to a slice
// header so captureUpvalue can compare locations cheaply).
type callFrame struct {
	closure   *value.Closure
	ip        int
	slotsBase int
}

// trySnapshot is pushed by OP_TRY_START and popped either by
// OP_TRY_END (normal exit) or by a recovered runtime error, which
// rewinds the stack/frame/ip to the snapshot and resumes at the
// catch-block offset (reference TrySnapshot).
type trySnapshot struct {
	frameCount int
	ip         int
	stackTop   int
}

const tryStackMax = 256

// VM is the whole interpreter: value stack, call frames, open
// upvalues, the collector, module registry, and the singleton classes
// every kind of value dispatches through.
type VM struct {
	stack    [config.StackMax]value.Value
	stackTop int

	frames     [config.FramesMax]callFrame
	frameCount int

	openUpvalues *value.Upvalue
	trySnapshots []trySnapshot

	GC *gc.Collector

	Globals             map[string]*value.Module
	NativeModuleThunks  map[string]*value.CFunction
	SourceLoader        *importer.Loader

	SentinelClass, NilClass, BoolClass, NumberClass *value.Class
	StringClass, ByteArrayClass, ByteArrayViewClass *value.Class
	ListClass, TupleClass, DictClass, FrozenDictClass *value.Class
	FunctionClass, OperatorClass, ClassClass, FileClass *value.Class

	initString, iterString, lenString    *value.String
	mulString, modString, containsString *value.String
	getitemString, setitemString, sliceString *value.String

	lastError string
}

// New builds a VM with a fresh collector and the built-in singleton
// classes registered, mirroring the reference initVM's sequence of
// initNoMethodClass calls (full method population for each kind lives
// in internal/builtins, wired in here through builtins.Register).
func New() *VM {
	vm := &VM{
		GC:                 gc.New(),
		Globals:            make(map[string]*value.Module),
		NativeModuleThunks: make(map[string]*value.CFunction),
		SourceLoader:       importer.NewLoader(),
	}
	compiler.SetInterner(func(s string) *value.String { return vm.GC.Strings.Intern(s) })

	vm.SentinelClass = vm.newBuiltinClass("Sentinel")
	vm.NilClass = vm.newBuiltinClass("Nil")
	vm.BoolClass = vm.newBuiltinClass("Bool")
	vm.NumberClass = vm.newBuiltinClass("Number")
	vm.StringClass = vm.newBuiltinClass("String")
	vm.ByteArrayClass = vm.newBuiltinClass("ByteArray")
	vm.ByteArrayViewClass = vm.newBuiltinClass("ByteArrayView")
	vm.ListClass = vm.newBuiltinClass("List")
	vm.TupleClass = vm.newBuiltinClass("Tuple")
	vm.DictClass = vm.newBuiltinClass("Dict")
	vm.FrozenDictClass = vm.newBuiltinClass("FrozenDict")
	vm.FunctionClass = vm.newBuiltinClass("Function")
	vm.OperatorClass = vm.newBuiltinClass("Operator")
	vm.ClassClass = vm.newBuiltinClass("Class")
	vm.FileClass = vm.newBuiltinClass("File")

	vm.initString = vm.intern("__init__")
	vm.iterString = vm.intern("__iter__")
	vm.lenString = vm.intern("__len__")
	vm.mulString = vm.intern("__mul__")
	vm.modString = vm.intern("__mod__")
	vm.containsString = vm.intern("__contains__")
	vm.getitemString = vm.intern("__getitem__")
	vm.setitemString = vm.intern("__setitem__")
	vm.sliceString = vm.intern("__slice__")

	builtins.Register(builtins.ClassSet{
		String:        vm.StringClass,
		List:          vm.ListClass,
		Tuple:         vm.TupleClass,
		Dict:          vm.DictClass,
		FrozenDict:    vm.FrozenDictClass,
		ByteArray:     vm.ByteArrayClass,
		ByteArrayView: vm.ByteArrayViewClass,
		Class:         vm.ClassClass,
		File:          vm.FileClass,
	})

	vm.registerNativeModules()

	return vm
}

func (vm *VM) newBuiltinClass(name string) *value.Class {
	c := &value.Class{Name: name, Methods: value.MethodTable{}, Statics: value.MethodTable{}, IsBuiltin: true}
	vm.track(c)
	return c
}

func (vm *VM) intern(s string) *value.String { return vm.GC.Strings.Intern(s) }

// track registers a freshly allocated heap object with the collector
// and runs a collection if the allocation pushed bytes past the
// threshold (spec §4.C).
func (vm *VM) track(o value.Tracked) {
	vm.GC.Track(o)
	if vm.GC.ShouldCollect() {
		vm.GC.Collect(vm)
	}
}

// --- value stack -------------------------------------------------------

func (vm *VM) push(v value.Value) {
	if vm.stackTop >= config.StackMax {
		panic("mtots: stack overflow")
	}
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value { return vm.stack[vm.stackTop-1-distance] }

// --- value.CallContext ---------------------------------------------------

// RuntimeError formats a CallContext-surfaced error. Native function
// bodies return the resulting error from Body; the dispatch loop
// turns it into a recoverable raise exactly like a bytecode-level
// runtime error.
func (vm *VM) RuntimeError(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// Call invokes callee with args and runs it to completion, so a native
// function can call back into Mtots code.
func (vm *VM) Call(callee value.Value, args []value.Value) (value.Value, error) {
	vm.push(callee)
	for _, a := range args {
		vm.push(a)
	}
	startFrames := vm.frameCount
	if !vm.callValue(callee, len(args)) {
		err := fmt.Errorf("%s", vm.lastError)
		return value.Nil(), err
	}
	if vm.frameCount > startFrames {
		return vm.run(startFrames)
	}
	return vm.pop(), nil
}

func (vm *VM) Push(v value.Value)    { vm.push(v) }
func (vm *VM) Pop() value.Value      { return vm.pop() }

// Loaded reports whether name is already a cached module, satisfying
// importer.Interpreter so the source-file loader never double-runs a
// module's top-level code.
func (vm *VM) Loaded(name string) (*value.Module, bool) {
	m, ok := vm.Globals[name]
	return m, ok
}

// Track lets a native function register a freshly allocated heap
// object with the collector, exactly as the VM's own bytecode handlers
// do (reference macros like NEW_NATIVE_CLOSURE calling through to the
// same allocator the VM itself uses).
func (vm *VM) Track(o value.Tracked) { vm.track(o) }

// Intern lets a native function produce a canonical *value.String the
// same way the compiler and bytecode handlers do, so strings built at
// runtime (String.strip, String.replace, split(), ...) satisfy
// invariant 1 exactly like literals.
func (vm *VM) Intern(s string) *value.String { return vm.intern(s) }

// InternTuple returns the canonical tuple structurally equal to elems,
// per invariant 2 (structurally-equal tuples share identity), exactly
// like OP_NEW_TUPLE's own construction path.
func (vm *VM) InternTuple(elems []value.Value) *value.Tuple {
	return vm.GC.Aggregates.FindOrInsertTuple(elems)
}

// InternFrozenMap returns the canonical frozen map structurally equal
// to the given key/value pairs, per invariant 2, backing the
// frozendict(...) global's construction path.
func (vm *VM) InternFrozenMap(keys, vals []value.Value) (*value.FrozenMap, error) {
	return vm.GC.Aggregates.FindOrInsertFrozenMap(keys, vals)
}

// --- gc.Roots ------------------------------------------------------------

// MarkRoots marks every VM-owned GC root: the live portion of the
// value stack, each active frame's closure, the open-upvalue chain,
// module globals, native-module thunks, the built-in singleton
// classes, and the cached dunder-method name strings (reference
// markRoots, minus markCompilerRoots since Compile never runs
// concurrently with a collection in this single-threaded VM).
func (vm *VM) MarkRoots(c *gc.Collector) {
	for i := 0; i < vm.stackTop; i++ {
		c.MarkValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		c.Mark(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.NextUpvalue() {
		c.Mark(uv)
	}
	for _, m := range vm.Globals {
		c.Mark(m)
	}
	for _, thunk := range vm.NativeModuleThunks {
		c.MarkValue(value.Fn(thunk))
	}
	for _, cls := range []*value.Class{
		vm.SentinelClass, vm.NilClass, vm.BoolClass, vm.NumberClass,
		vm.StringClass, vm.ByteArrayClass, vm.ByteArrayViewClass,
		vm.ListClass, vm.TupleClass, vm.DictClass, vm.FrozenDictClass,
		vm.FunctionClass, vm.OperatorClass, vm.ClassClass, vm.FileClass,
	} {
		c.Mark(cls)
	}
	for _, s := range []*value.String{
		vm.initString, vm.iterString, vm.lenString, vm.mulString,
		vm.modString, vm.containsString, vm.getitemString,
		vm.setitemString, vm.sliceString,
	} {
		if s != nil {
			s.SetMarked(true)
		}
	}
}

// --- bytecode reads --------------------------------------------------

func (vm *VM) readByte(frame *callFrame) byte {
	b := frame.closure.Proto.Chunk.Code[frame.ip]
	frame.ip++
	return b
}

func (vm *VM) readShort(frame *callFrame) int {
	hi := vm.readByte(frame)
	lo := vm.readByte(frame)
	return int(hi)<<8 | int(lo)
}

func (vm *VM) readConstant(frame *callFrame) value.Value {
	return frame.closure.Proto.Chunk.Constants[vm.readByte(frame)]
}

func (vm *VM) readString(frame *callFrame) *value.String {
	return vm.readConstant(frame).Str
}

func (vm *VM) currentLine(frame *callFrame) int {
	idx := frame.ip - 1
	lines := frame.closure.Proto.Chunk.Lines
	if idx < 0 || idx >= len(lines) {
		return 0
	}
	return lines[idx]
}

// --- runtime errors ------------------------------------------------------

// raise records a formatted, stack-traced error message as the
// pending failure and always returns false, so call sites can write
// `return vm.raise(...)`. fail() below decides whether a try snapshot
// can swallow it.
func (vm *VM) raise(format string, args ...interface{}) bool {
	vm.lastError = vm.formatError(fmt.Sprintf(format, args...))
	return false
}

func (vm *VM) formatError(msg string) string {
	var b strings.Builder
	b.WriteString(msg)
	b.WriteByte('\n')
	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		proto := frame.closure.Proto
		line := vm.currentLine(frame)
		fmt.Fprintf(&b, "[line %d] in ", line)
		switch {
		case proto.Name == "" && proto.ModuleName == "":
			b.WriteString("[script]\n")
		case proto.Name == "":
			fmt.Fprintf(&b, "%s\n", proto.ModuleName)
		case proto.ModuleName == "":
			fmt.Fprintf(&b, "%s()\n", proto.Name)
		default:
			fmt.Fprintf(&b, "%s:%s()\n", proto.ModuleName, proto.Name)
		}
	}
	return b.String()
}

// recoverTry rewinds to the most recently opened try block, if any,
// discarding the pending error (reference RETURN_RUNTIME_ERROR): this
// language's `try expr else expr` never exposes the failure message,
// it only picks the fallback expression.
func (vm *VM) recoverTry() bool {
	if len(vm.trySnapshots) == 0 {
		return false
	}
	n := len(vm.trySnapshots) - 1
	snap := vm.trySnapshots[n]
	vm.trySnapshots = vm.trySnapshots[:n]
	vm.stackTop = snap.stackTop
	vm.frameCount = snap.frameCount
	vm.frames[vm.frameCount-1].ip = snap.ip
	vm.lastError = ""
	return true
}

// seedCoreGlobals installs the always-present free functions (print,
// range, str, ...), the StopIteration sentinel, and every built-in
// class name into a freshly created module's globals (reference
// initVM's defineGlobal calls in mtots_globals.c) — distinct from the
// hoisted prelude subset (sorted/list/tuple/dict/set), which
// internal/importer seeds separately since it has no class objects to
// hand out.
func (vm *VM) seedCoreGlobals(fields map[string]value.Value) {
	for name, fn := range builtins.Globals() {
		if _, exists := fields[name]; !exists {
			fields[name] = value.Fn(fn)
		}
	}
	if _, exists := fields["StopIteration"]; !exists {
		fields["StopIteration"] = value.Sent(value.SentinelStopIteration)
	}
	classes := map[string]*value.Class{
		"Sentinel": vm.SentinelClass, "Nil": vm.NilClass, "Bool": vm.BoolClass,
		"Number": vm.NumberClass, "String": vm.StringClass,
		"ByteArray": vm.ByteArrayClass, "ByteArrayView": vm.ByteArrayViewClass,
		"List": vm.ListClass, "Tuple": vm.TupleClass,
		"Dict": vm.DictClass, "FrozenDict": vm.FrozenDictClass,
		"Function": vm.FunctionClass, "Operator": vm.OperatorClass,
		"Class": vm.ClassClass, "File": vm.FileClass,
	}
	for name, cls := range classes {
		if _, exists := fields[name]; !exists {
			fields[name] = value.Obj(cls)
		}
	}
}

// Interpret compiles and runs source as a fresh top-level script bound
// to module (reference interpret()), returning the script's implicit
// result value.
func (vm *VM) Interpret(source string, module *value.Module) (value.Value, error) {
	vm.seedCoreGlobals(module.Fields)
	importer.SeedPrelude(module.Fields)
	proto, errs := compiler.Compile(source, module.Name)
	if proto == nil {
		return value.Nil(), fmt.Errorf(strings.Join(errs, "\n"))
	}
	vm.track(proto)

	closure := &value.Closure{Proto: proto, Module: module}
	vm.track(closure)

	vm.push(value.Obj(closure))
	startFrames := vm.frameCount
	if !vm.call(closure, 0) {
		return value.Nil(), fmt.Errorf("%s", vm.lastError)
	}
	return vm.run(startFrames)
}
