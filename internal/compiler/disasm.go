package compiler

import (
	"fmt"
	"strings"

	"github.com/mtots-lang/mtots/internal/value"
)

// Disassemble renders chunk as a human-readable instruction listing,
// gated behind MTOTS_DISASSEMBLE (SPEC_FULL.md's supplemented feature
// #1, grounded on the reference disassembler mtots_chunk.c exposes
// under its own debug flag).
func Disassemble(chunk *value.Chunk, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	offset := 0
	for offset < len(chunk.Code) {
		offset = disassembleInstruction(&b, chunk, offset)
	}
	return b.String()
}

func disassembleInstruction(b *strings.Builder, chunk *value.Chunk, offset int) int {
	fmt.Fprintf(b, "%04d ", offset)
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		fmt.Fprint(b, "   | ")
	} else {
		fmt.Fprintf(b, "%4d ", chunk.Lines[offset])
	}

	op := OpCode(chunk.Code[offset])
	switch op {
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall, OpNewList, OpNewDict:
		return byteInstruction(b, op, chunk, offset)
	case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal, OpGetField, OpSetField, OpClass, OpMethod, OpImport:
		return constantInstruction(b, op, chunk, offset)
	case OpInvoke, OpSuperInvoke:
		return invokeInstruction(b, op, chunk, offset)
	case OpJump, OpJumpIfFalse, OpJumpIfStopIteration, OpLoop, OpTryStart, OpTryEnd:
		return jumpInstruction(b, op, chunk, offset)
	case OpClosure:
		return closureInstruction(b, chunk, offset)
	default:
		fmt.Fprintf(b, "%s\n", op)
		return offset + 1
	}
}

func byteInstruction(b *strings.Builder, op OpCode, chunk *value.Chunk, offset int) int {
	slot := chunk.Code[offset+1]
	fmt.Fprintf(b, "%-16s %4d\n", op, slot)
	return offset + 2
}

func constantInstruction(b *strings.Builder, op OpCode, chunk *value.Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	fmt.Fprintf(b, "%-16s %4d '%s'\n", op, idx, chunk.Constants[idx].Inspect())
	return offset + 2
}

func invokeInstruction(b *strings.Builder, op OpCode, chunk *value.Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	argCount := chunk.Code[offset+2]
	fmt.Fprintf(b, "%-16s (%d args) %4d '%s'\n", op, argCount, idx, chunk.Constants[idx].Inspect())
	return offset + 3
}

func jumpInstruction(b *strings.Builder, op OpCode, chunk *value.Chunk, offset int) int {
	jump := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	sign := 1
	if op == OpLoop {
		sign = -1
	}
	fmt.Fprintf(b, "%-16s %4d -> %d\n", op, offset, offset+3+sign*jump)
	return offset + 3
}

func closureInstruction(b *strings.Builder, chunk *value.Chunk, offset int) int {
	offset++
	idx := chunk.Code[offset]
	offset++
	fmt.Fprintf(b, "%-16s %4d '%s'\n", OpClosure, idx, chunk.Constants[idx].Inspect())

	proto, ok := chunk.Constants[idx].ObjectOf().(*value.FunctionProto)
	if !ok {
		return offset
	}
	for i := 0; i < proto.UpvalueCount; i++ {
		isLocal := chunk.Code[offset]
		index := chunk.Code[offset+1]
		offset += 2
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(b, "%04d      |                     %s %d\n", offset-2, kind, index)
	}
	return offset
}
