package vm

import "github.com/mtots-lang/mtots/internal/value"

// valueLessThan implements `<`/`>` for the two ordered kinds spec §4.F
// recognizes: numbers compare numerically, strings compare
// byte-lexicographically. Anything else is a runtime error (reference
// run()'s OP_LESS/OP_GREATER cases).
func (vm *VM) valueLessThan(a, b value.Value) (bool, error) {
	switch {
	case a.IsNumber() && b.IsNumber():
		return a.Num < b.Num, nil
	case a.IsString() && b.IsString():
		return a.Str.Value < b.Str.Value, nil
	}
	return false, vm.RuntimeError("Operands must be two numbers or two strings")
}
