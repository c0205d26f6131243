// Package compiler turns a token stream from internal/lexer into a
// tree of value.FunctionProto/value.Chunk objects via a single-pass
// Pratt parser, grounded on the reference implementation's
// mtots_compiler_impl.h (see original_source in the retrieval pack).
package compiler

// OpCode is a single bytecode instruction tag (spec §4.F). Operand
// layout is documented per opcode below; all multi-byte operands are
// big-endian u16 unless noted.
type OpCode byte

const (
	OpConstant OpCode = iota // u8 constant-pool index -> push
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpGetLocal  // u8 slot
	OpSetLocal  // u8 slot
	OpGetUpvalue // u8 index
	OpSetUpvalue // u8 index
	OpGetGlobal   // u8 constant-pool index -> name
	OpDefineGlobal // u8 constant-pool index -> name
	OpSetGlobal    // u8 constant-pool index -> name
	OpGetField // u8 constant-pool index -> name
	OpSetField // u8 constant-pool index -> name
	OpIs
	OpEqual
	OpGreater
	OpLess
	OpNot
	OpIn
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpFloorDivide
	OpModulo
	OpNegate
	OpShiftLeft
	OpShiftRight
	OpBitwiseOr
	OpBitwiseAnd
	OpBitwiseXor
	OpBitwiseNot
	OpJump               // u16 offset, unconditional forward
	OpJumpIfFalse        // u16 offset, pops nothing (condition left for Pop)
	OpJumpIfStopIteration // u16 offset; leaves TOS in place, jumps if it is the StopIteration sentinel
	OpLoop               // u16 offset, backward
	OpReturn
	OpGetIter // replace TOS with its iterator
	OpGetNext // push iterator's next value or StopIteration
	OpCall    // u8 argCount
	OpInvoke  // u8 constant-pool index -> name, u8 argCount
	OpSuperInvoke // u8 constant-pool index -> name, u8 argCount
	OpClosure // u8 constant-pool index -> FunctionProto, then UpvalueCount pairs of (u8 isLocal, u8 index)
	OpCloseUpvalue
	OpNewList // u8 elementCount
	OpNewDict // u8 pairCount
	OpClass   // u8 constant-pool index -> name
	OpInherit
	OpMethod // u8 constant-pool index -> name
	OpImport // u8 constant-pool index -> module name
	OpTryStart // u16 offset to catch block
	OpTryEnd
	OpRaise
)

var opNames = [...]string{
	OpConstant: "CONSTANT", OpNil: "NIL", OpTrue: "TRUE", OpFalse: "FALSE", OpPop: "POP",
	OpGetLocal: "GET_LOCAL", OpSetLocal: "SET_LOCAL",
	OpGetUpvalue: "GET_UPVALUE", OpSetUpvalue: "SET_UPVALUE",
	OpGetGlobal: "GET_GLOBAL", OpDefineGlobal: "DEFINE_GLOBAL", OpSetGlobal: "SET_GLOBAL",
	OpGetField: "GET_FIELD", OpSetField: "SET_FIELD",
	OpIs: "IS", OpEqual: "EQUAL", OpGreater: "GREATER", OpLess: "LESS", OpNot: "NOT", OpIn: "IN",
	OpAdd: "ADD", OpSubtract: "SUBTRACT", OpMultiply: "MULTIPLY", OpDivide: "DIVIDE",
	OpFloorDivide: "FLOOR_DIVIDE", OpModulo: "MODULO", OpNegate: "NEGATE",
	OpShiftLeft: "SHIFT_LEFT", OpShiftRight: "SHIFT_RIGHT",
	OpBitwiseOr: "BITWISE_OR", OpBitwiseAnd: "BITWISE_AND", OpBitwiseXor: "BITWISE_XOR", OpBitwiseNot: "BITWISE_NOT",
	OpJump: "JUMP", OpJumpIfFalse: "JUMP_IF_FALSE", OpJumpIfStopIteration: "JUMP_IF_STOP_ITERATION", OpLoop: "LOOP",
	OpReturn: "RETURN", OpGetIter: "GET_ITER", OpGetNext: "GET_NEXT",
	OpCall: "CALL", OpInvoke: "INVOKE", OpSuperInvoke: "SUPER_INVOKE",
	OpClosure: "CLOSURE", OpCloseUpvalue: "CLOSE_UPVALUE",
	OpNewList: "NEW_LIST", OpNewDict: "NEW_DICT",
	OpClass: "CLASS", OpInherit: "INHERIT", OpMethod: "METHOD",
	OpImport: "IMPORT",
	OpTryStart: "TRY_START", OpTryEnd: "TRY_END", OpRaise: "RAISE",
}

func (op OpCode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "UNKNOWN"
}
