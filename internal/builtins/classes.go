package builtins

import "github.com/mtots-lang/mtots/internal/value"

// classGetName is called as a bare function value (Class.getName is a
// static, not an instance method), so args[0] is the callee itself
// and args[1] is the Class argument per the receiver-slot convention.
func classGetName(ctx value.CallContext, args []value.Value) (value.Value, error) {
	cls := args[1].ObjectOf().(*value.Class)
	return value.Str(ctx.Intern(cls.Name)), nil
}

// RegisterClass populates the built-in Class class's static-method
// table (reference initClassClass).
func RegisterClass(cls *value.Class) {
	cls.Statics["getName"] = value.Fn(&value.CFunction{
		Name: "getName", MinArity: 1, MaxArity: 1,
		Params: []value.TypePattern{{Kind: value.PatternClass}},
		Body:   classGetName,
	})
}
