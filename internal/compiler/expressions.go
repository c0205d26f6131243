package compiler

import (
	"strconv"
	"strings"

	"github.com/mtots-lang/mtots/internal/lexer"
	"github.com/mtots-lang/mtots/internal/value"
)

func (p *Parser) expression() {
	p.parsePrecedence(PrecAssignment)
}

func (p *Parser) parsePrecedence(prec Precedence) {
	p.advance()
	r := getRule(p.prev.Type)
	if r.prefix == nil {
		p.error("Expected expression")
		return
	}
	canAssign := prec <= PrecAssignment
	if err := r.prefix(p, canAssign); err != nil {
		p.error(err.Error())
		return
	}

	for prec <= getRule(p.current.Type).precedence {
		p.advance()
		ir := getRule(p.prev.Type)
		if ir.infix == nil {
			p.error("Expected expression")
			return
		}
		if err := ir.infix(p, canAssign); err != nil {
			p.error(err.Error())
			return
		}
	}

	if canAssign && p.match(lexer.EQUAL) {
		p.error("Invalid assignment target")
	}
}

func grouping(p *Parser, canAssign bool) error {
	p.expression()
	p.consume(lexer.RIGHT_PAREN, "Expect ')' after expression")
	return nil
}

func call(p *Parser, canAssign bool) error {
	argCount := p.argumentList()
	p.emitOpByte(OpCall, argCount)
	return nil
}

func (p *Parser) argumentList() byte {
	var count int
	if !p.check(lexer.RIGHT_PAREN) {
		for {
			p.expression()
			if count == 255 {
				p.error("Can't have more than 255 arguments")
			}
			count++
			if !p.match(lexer.COMMA) {
				break
			}
		}
	}
	p.consume(lexer.RIGHT_PAREN, "Expect ')' after arguments")
	return byte(count)
}

func dot(p *Parser, canAssign bool) error {
	p.consume(lexer.IDENTIFIER, "Expect property name after '.'")
	name := p.identifierConstant(p.prev.Lexeme)

	switch {
	case canAssign && p.match(lexer.EQUAL):
		p.expression()
		p.emitOpByte(OpSetField, name)
	case p.match(lexer.LEFT_PAREN):
		argCount := p.argumentList()
		p.emitOpByte(OpInvoke, name)
		p.emitByte(argCount)
	default:
		p.emitOpByte(OpGetField, name)
	}
	return nil
}

// subscript compiles `x[i]`, `x[i] = v`, and slice syntax `x[a:b]`,
// rewriting each into a dunder-method OP_INVOKE exactly as the
// reference compiler does (spec §4.E).
func subscript(p *Parser, canAssign bool) error {
	if p.check(lexer.COLON) {
		p.emitOp(OpNil)
	} else {
		p.expression()
	}

	if p.match(lexer.COLON) {
		name := p.identifierConstant("__slice__")
		if p.check(lexer.RIGHT_BRACKET) {
			p.emitOp(OpNil)
		} else {
			p.expression()
		}
		p.consume(lexer.RIGHT_BRACKET, "Expect ']' after slice index expression")
		p.emitOpByte(OpInvoke, name)
		p.emitByte(2)
		return nil
	}

	p.consume(lexer.RIGHT_BRACKET, "Expect ']' after index expression")
	if canAssign && p.match(lexer.EQUAL) {
		name := p.identifierConstant("__setitem__")
		p.expression()
		p.emitOpByte(OpInvoke, name)
		p.emitByte(2)
	} else {
		name := p.identifierConstant("__getitem__")
		p.emitOpByte(OpInvoke, name)
		p.emitByte(1)
	}
	return nil
}

func literal(p *Parser, canAssign bool) error {
	switch p.prev.Type {
	case lexer.FALSE:
		p.emitOp(OpFalse)
	case lexer.NIL:
		p.emitOp(OpNil)
	case lexer.TRUE:
		p.emitOp(OpTrue)
	}
	return nil
}

func number(p *Parser, canAssign bool) error {
	n, err := parseNumberLexeme(p.prev.Type, p.prev.Lexeme)
	if err != nil {
		p.error(err.Error())
		return nil
	}
	p.emitConstant(value.Number(n))
	return nil
}

// parseNumberLexeme converts a NUMBER/NUMBER_HEX/NUMBER_BIN lexeme into
// its float64 value, matching the reference numberHex/numberBin digit
// loops (and strtod for plain decimals).
func parseNumberLexeme(t lexer.TokenType, lex string) (float64, error) {
	switch t {
	case lexer.NUMBER_HEX:
		u, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(lex, "0x"), "0X"), 16, 64)
		if err != nil {
			return 0, err
		}
		return float64(u), nil
	case lexer.NUMBER_BIN:
		u, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(lex, "0b"), "0B"), 2, 64)
		if err != nil {
			return 0, err
		}
		return float64(u), nil
	default:
		return strconv.ParseFloat(lex, 64)
	}
}

// stringLiteral handles both quoted (with escape processing) and raw
// string tokens. The lexer has already stripped the delimiting quotes
// (and a raw string's r prefix): Lexeme holds only the body.
func stringLiteral(p *Parser, canAssign bool) error {
	lex := p.prev.Lexeme
	var s string
	if p.prev.Type == lexer.RAW_STRING {
		s = rawStringBody(lex)
	} else {
		s = unescapeString(lex)
	}
	p.emitConstant(value.Str(p.intern(s)))
	return nil
}

func rawStringBody(lex string) string {
	// lexeme is already the raw body; no escapes to process.
	return lex
}

func unescapeString(lex string) string {
	body := lex
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i == len(body)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case '\\':
			b.WriteByte('\\')
		case '"':
			b.WriteByte('"')
		case '\'':
			b.WriteByte('\'')
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}

func and_(p *Parser, canAssign bool) error {
	endJump := p.emitJump(OpJumpIfFalse)
	p.emitOp(OpPop)
	p.parsePrecedence(PrecAnd)
	p.patchJump(endJump)
	return nil
}

func or_(p *Parser, canAssign bool) error {
	elseJump := p.emitJump(OpJumpIfFalse)
	endJump := p.emitJump(OpJump)
	p.patchJump(elseJump)
	p.emitOp(OpPop)
	p.parsePrecedence(PrecOr)
	p.patchJump(endJump)
	return nil
}

// binary compiles every left-associative two-operand operator,
// including the `is not` / `not in` two-token spellings, exactly as
// the reference compiler's binary() does.
func binary(p *Parser, canAssign bool) error {
	opType := p.prev.Type
	isNot, notIn := false, false
	if opType == lexer.IS && p.match(lexer.NOT) {
		isNot = true
	} else if opType == lexer.NOT {
		p.consume(lexer.IN, "when used as a binary operator, 'not' must always be followed by 'in'")
		notIn = true
		opType = lexer.IN
	}

	r := getRule(opType)
	p.parsePrecedence(r.precedence + 1)

	switch opType {
	case lexer.IS:
		p.emitOp(OpIs)
		if isNot {
			p.emitOp(OpNot)
		}
	case lexer.BANG_EQUAL:
		p.emitOp(OpEqual)
		p.emitOp(OpNot)
	case lexer.EQUAL_EQUAL:
		p.emitOp(OpEqual)
	case lexer.GREATER:
		p.emitOp(OpGreater)
	case lexer.GREATER_EQUAL:
		p.emitOp(OpLess)
		p.emitOp(OpNot)
	case lexer.LESS:
		p.emitOp(OpLess)
	case lexer.LESS_EQUAL:
		p.emitOp(OpGreater)
		p.emitOp(OpNot)
	case lexer.IN:
		p.emitOp(OpIn)
		if notIn {
			p.emitOp(OpNot)
		}
	case lexer.PLUS:
		p.emitOp(OpAdd)
	case lexer.MINUS:
		p.emitOp(OpSubtract)
	case lexer.STAR:
		p.emitOp(OpMultiply)
	case lexer.SLASH:
		p.emitOp(OpDivide)
	case lexer.SLASH_SLASH:
		p.emitOp(OpFloorDivide)
	case lexer.PERCENT:
		p.emitOp(OpModulo)
	case lexer.LSHIFT:
		p.emitOp(OpShiftLeft)
	case lexer.RSHIFT:
		p.emitOp(OpShiftRight)
	case lexer.PIPE:
		p.emitOp(OpBitwiseOr)
	case lexer.AMP:
		p.emitOp(OpBitwiseAnd)
	case lexer.CARET:
		p.emitOp(OpBitwiseXor)
	}
	return nil
}

func unary(p *Parser, canAssign bool) error {
	opType := p.prev.Type
	if opType == lexer.NOT {
		p.parsePrecedence(PrecNot)
	} else {
		p.parsePrecedence(PrecUnary)
	}
	switch opType {
	case lexer.TILDE:
		p.emitOp(OpBitwiseNot)
	case lexer.NOT:
		p.emitOp(OpNot)
	case lexer.MINUS:
		p.emitOp(OpNegate)
	}
	return nil
}

func listDisplay(p *Parser, canAssign bool) error {
	length := 0
	for {
		if p.match(lexer.RIGHT_BRACKET) {
			break
		}
		p.expression()
		length++
		if !p.match(lexer.COMMA) {
			p.consume(lexer.RIGHT_BRACKET, "Expect ']' at the end of a list display")
			break
		}
	}
	if length > 255 {
		p.error("Number of items in a list display cannot exceed 255")
		return nil
	}
	p.emitOpByte(OpNewList, byte(length))
	return nil
}

func dictDisplay(p *Parser, canAssign bool) error {
	length := 0
	for {
		if p.match(lexer.RIGHT_BRACE) {
			break
		}
		p.expression()
		if p.match(lexer.COLON) {
			p.expression()
		} else {
			p.emitOp(OpNil)
		}
		length++
		if !p.match(lexer.COMMA) {
			p.consume(lexer.RIGHT_BRACE, "Expect '}' at the end of a dict display")
			break
		}
	}
	if length > 255 {
		p.error("Number of pairs in a dict display cannot exceed 255")
		return nil
	}
	p.emitOpByte(OpNewDict, byte(length))
	return nil
}

func tryExpr(p *Parser, canAssign bool) error {
	startJump := p.emitJump(OpTryStart)
	p.expression()
	endJump := p.emitJump(OpTryEnd)
	p.consume(lexer.ELSE, "Expected 'else' in 'try' expression")
	p.patchJump(startJump)
	p.expression()
	p.patchJump(endJump)
	return nil
}

func raiseExpr(p *Parser, canAssign bool) error {
	p.expression()
	p.emitOp(OpRaise)
	return nil
}

func namedVariable(p *Parser, name string, canAssign bool) {
	var getOp, setOp OpCode
	arg := resolveLocal(p.c, name)
	if arg == -2 {
		p.error("Can't read local variable in its own initializer")
		arg = 0
	}
	if arg >= 0 {
		getOp, setOp = OpGetLocal, OpSetLocal
	} else if u := resolveUpvalue(p.c, name); u >= 0 {
		arg, getOp, setOp = u, OpGetUpvalue, OpSetUpvalue
	} else {
		arg = int(p.identifierConstant(name))
		getOp, setOp = OpGetGlobal, OpSetGlobal
	}

	if canAssign && p.match(lexer.EQUAL) {
		p.expression()
		p.emitOpByte(setOp, byte(arg))
	} else {
		p.emitOpByte(getOp, byte(arg))
	}
}

func variable(p *Parser, canAssign bool) error {
	namedVariable(p, p.prev.Lexeme, canAssign)
	return nil
}

func self_(p *Parser, canAssign bool) error {
	if p.class == nil {
		p.error("Can't use 'this' outside of a class")
		return nil
	}
	namedVariable(p, "this", false)
	return nil
}

func super_(p *Parser, canAssign bool) error {
	if p.class == nil {
		p.error("Can't use 'super' outside of a class")
	} else if !p.class.hasSuperclass {
		p.error("Can't use 'super' in a class with no superclass")
	}

	p.consume(lexer.DOT, "Expect '.' after 'super'")
	p.consume(lexer.IDENTIFIER, "Expect superclass method name")
	name := p.identifierConstant(p.prev.Lexeme)

	namedVariable(p, "this", false)
	p.consume(lexer.LEFT_PAREN, "Expect '(' to call super method")
	argCount := p.argumentList()
	namedVariable(p, "super", false)
	p.emitOpByte(OpSuperInvoke, name)
	p.emitByte(argCount)
	return nil
}

