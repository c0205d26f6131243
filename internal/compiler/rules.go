package compiler

import "github.com/mtots-lang/mtots/internal/lexer"

// Precedence mirrors the reference compiler's Precedence enum exactly
// (mtots_compiler_impl.h), including the unusual placement of PREC_IF
// above PREC_OR and PREC_NOT between PREC_AND and PREC_COMPARISON.
type Precedence uint8

const (
	PrecNone Precedence = iota
	PrecAssignment // =
	PrecIf         // if/try (conditional expression)
	PrecOr         // or
	PrecAnd        // and
	PrecNot        // not
	PrecComparison // == != < > <= >= in is
	PrecShift      // << >>
	PrecBitwiseAnd // &
	PrecBitwiseXor // ^
	PrecBitwiseOr  // |
	PrecTerm       // + -
	PrecFactor     // * / // %
	PrecUnary      // ! - ~
	PrecCall       // . () []
	PrecPrimary
)

type (
	prefixFn func(p *Parser, canAssign bool) error
	infixFn  func(p *Parser, canAssign bool) error
)

type rule struct {
	prefix     prefixFn
	infix      infixFn
	precedence Precedence
}

// rules is populated in init() rather than as a literal map so that
// the prefix/infix functions (defined across expressions.go) can refer
// to each other without forward-declaration trouble.
var rules map[lexer.TokenType]rule

func init() {
	rules = make(map[lexer.TokenType]rule)
	set := func(t lexer.TokenType, pre prefixFn, in infixFn, p Precedence) {
		rules[t] = rule{pre, in, p}
	}

	set(lexer.LEFT_PAREN, grouping, call, PrecCall)
	set(lexer.LEFT_BRACKET, listDisplay, subscript, PrecCall)
	set(lexer.LEFT_BRACE, dictDisplay, nil, PrecNone)
	set(lexer.DOT, nil, dot, PrecCall)

	set(lexer.MINUS, unary, binary, PrecTerm)
	set(lexer.PLUS, nil, binary, PrecTerm)
	set(lexer.STAR, nil, binary, PrecFactor)
	set(lexer.SLASH, nil, binary, PrecFactor)
	set(lexer.SLASH_SLASH, nil, binary, PrecFactor)
	set(lexer.PERCENT, nil, binary, PrecFactor)

	set(lexer.PIPE, nil, binary, PrecBitwiseOr)
	set(lexer.AMP, nil, binary, PrecBitwiseAnd)
	set(lexer.CARET, nil, binary, PrecBitwiseXor)
	set(lexer.TILDE, unary, nil, PrecNone)
	set(lexer.LSHIFT, nil, binary, PrecShift)
	set(lexer.RSHIFT, nil, binary, PrecShift)

	set(lexer.BANG_EQUAL, nil, binary, PrecComparison)
	set(lexer.EQUAL_EQUAL, nil, binary, PrecComparison)
	set(lexer.GREATER, nil, binary, PrecComparison)
	set(lexer.GREATER_EQUAL, nil, binary, PrecComparison)
	set(lexer.LESS, nil, binary, PrecComparison)
	set(lexer.LESS_EQUAL, nil, binary, PrecComparison)
	set(lexer.IS, nil, binary, PrecComparison)
	set(lexer.IN, nil, binary, PrecComparison)

	set(lexer.AND, nil, and_, PrecAnd)
	set(lexer.OR, nil, or_, PrecOr)
	// `not` is both the unary negation prefix and, as the leading half of
	// `not in`, an infix operator handled inside binary() itself.
	set(lexer.NOT, unary, binary, PrecComparison)

	set(lexer.TRY, tryExpr, nil, PrecNone)
	set(lexer.RAISE, raiseExpr, nil, PrecNone)

	set(lexer.IDENTIFIER, variable, nil, PrecNone)
	set(lexer.STRING, stringLiteral, nil, PrecNone)
	set(lexer.RAW_STRING, stringLiteral, nil, PrecNone)
	set(lexer.NUMBER, number, nil, PrecNone)
	set(lexer.NUMBER_HEX, number, nil, PrecNone)
	set(lexer.NUMBER_BIN, number, nil, PrecNone)
	set(lexer.TRUE, literal, nil, PrecNone)
	set(lexer.FALSE, literal, nil, PrecNone)
	set(lexer.NIL, literal, nil, PrecNone)
	set(lexer.THIS, self_, nil, PrecNone)
	set(lexer.SUPER, super_, nil, PrecNone)
	// LAMBDA, BREAK, and CONTINUE are reserved keywords the scanner
	// recognizes but the compiler does not yet wire into any rule,
	// matching the reference compiler (mtots_compiler_impl.h), which
	// lexes them the same way without a parse/statement rule.
}

func getRule(t lexer.TokenType) rule {
	if r, ok := rules[t]; ok {
		return r
	}
	return rule{precedence: PrecNone}
}
