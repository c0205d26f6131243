package vm

import "github.com/mtots-lang/mtots/internal/value"

// isIterator reports whether v is already usable as a zero-argument
// "give me the next value or StopIteration" callable — the contract
// OP_GET_NEXT relies on (reference isIterator). Anything else gets
// `__iter__` invoked on it once by OP_GET_ITER to obtain one.
func isIterator(v value.Value) bool {
	switch o := v.ObjectOf().(type) {
	case *value.NativeClosure:
		return o.Arity == 0
	case *value.Closure:
		return o.Proto.Arity == 0
	}
	return false
}

// isFalsey implements spec §4.F's truthiness rule, inverted (reference
// isFalsey — used directly by OP_NOT).
func isFalsey(v value.Value) bool { return !v.Truthy() }

// concatenate pops two strings and pushes their interned
// concatenation (reference concatenate, adapted to Go strings since
// our String payload is already a Go string rather than a raw byte
// buffer with an explicit length).
func (vm *VM) concatenate() {
	b := vm.pop()
	a := vm.pop()
	vm.push(value.Str(vm.intern(a.Str.Value + b.Str.Value)))
}
