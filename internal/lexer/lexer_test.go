package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []Token {
	t.Helper()
	s := New(src)
	var toks []Token
	for {
		tok := s.NextToken()
		toks = append(toks, tok)
		if tok.Type == EOF || tok.Type == ERROR {
			break
		}
	}
	return toks
}

func typesOf(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestIndentDedentAroundNestedBlock(t *testing.T) {
	src := "def f():\n  if x:\n    return 1\n  return 2\n"
	toks := scanAll(t, src)
	types := typesOf(toks)
	require.Contains(t, types, INDENT)
	require.Contains(t, types, DEDENT)

	var indents, dedents int
	for _, ty := range types {
		switch ty {
		case INDENT:
			indents++
		case DEDENT:
			dedents++
		}
	}
	require.Equal(t, indents, dedents, "every INDENT must be balanced by a DEDENT by EOF")
}

func TestOddIndentationIsARescannerError(t *testing.T) {
	src := "def f():\n   return 1\n"
	toks := scanAll(t, src)
	last := toks[len(toks)-1]
	require.Equal(t, ERROR, last.Type)
	require.Contains(t, last.Lexeme, "multiple of 2")
}

func TestLexingIsIdempotentOverWhitespaceInsideGrouping(t *testing.T) {
	// Testable property 7: re-lexing the same source yields the same
	// token sequence, including across a parenthesized multi-line
	// expression where NEWLINEs inside the grouping are suppressed.
	src := "final x = (1 +\n  2 +\n  3)\n"
	first := typesOf(scanAll(t, src))
	second := typesOf(scanAll(t, src))
	require.Equal(t, first, second)
}

func TestKeywordsAndOperatorsTokenizeDistinctly(t *testing.T) {
	toks := scanAll(t, "final x = 1 >= 2 and not false\n")
	types := typesOf(toks)
	require.Contains(t, types, FINAL)
	require.Contains(t, types, GREATER_EQUAL)
	require.Contains(t, types, AND)
	require.Contains(t, types, NOT)
	require.Contains(t, types, FALSE)
}
