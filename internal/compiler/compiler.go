package compiler

import (
	"fmt"
	"os"

	"github.com/mtots-lang/mtots/internal/config"
	"github.com/mtots-lang/mtots/internal/lexer"
	"github.com/mtots-lang/mtots/internal/value"
)

const maxLocals = 256 // mirrors the reference U8_COUNT: locals/upvalues index into a u8

// local is one entry in a function's local-variable table (grounded on
// the reference Local struct): its name, the scope depth it was
// declared at, and whether a nested closure captures it.
type local struct {
	name       string
	depth      int
	isCaptured bool
}

// upvalueRef is one entry in a function's upvalue table (reference
// Upvalue struct): whether it forwards a local slot of the immediately
// enclosing function, or one of that function's own upvalues.
type upvalueRef struct {
	index   int
	isLocal bool
}

// functionType distinguishes the kind of FunctionProto being compiled,
// since script-level code and methods emit slightly different
// implicit-return and `this`-binding behavior.
type functionType int

const (
	typeScript functionType = iota
	typeFunction
	typeMethod
	typeInitializer
)

// Compiler is one nested function's compilation state; it chains to
// its lexically enclosing Compiler exactly as the reference
// implementation's Compiler.enclosing does, modeling the call stack of
// compile-time scopes with an ordinary Go value instead of a global.
type Compiler struct {
	enclosing *Compiler
	proto     *value.FunctionProto
	fnType    functionType

	locals    [maxLocals]local
	localCount int
	upvalues  [maxLocals]upvalueRef
	scopeDepth int

	defaultArgs []value.Value // staged default-argument values, in parameter order
}

// classCompiler tracks whether the class body currently being compiled
// has a superclass, for `super` resolution (reference ClassCompiler).
type classCompiler struct {
	enclosing     *classCompiler
	hasSuperclass bool
}

// Parser drives the whole compilation: token stream, current nested
// Compiler/classCompiler chains, and error/panic-mode bookkeeping
// (reference Parser global, made an explicit receiver).
type Parser struct {
	scanner *lexer.Scanner
	current lexer.Token
	prev    lexer.Token

	hadError  bool
	panicMode bool
	errs      []string

	c     *Compiler
	class *classCompiler

	moduleName string
	disasm     bool
}

// Compile compiles source into a top-level script FunctionProto.
// moduleName is recorded on each proto as its ModuleName; compile
// error messages do not include it.
func Compile(source, moduleName string) (*value.FunctionProto, []string) {
	p := &Parser{
		scanner:    lexer.New(source),
		moduleName: moduleName,
		disasm:     os.Getenv(config.EnvDisassemble) != "",
	}
	p.c = p.newCompiler(nil, typeScript)

	p.advance()
	for !p.match(lexer.EOF) {
		p.declaration()
	}
	proto := p.endCompiler()

	if p.hadError {
		return nil, p.errs
	}
	return proto, nil
}

func (p *Parser) newCompiler(enclosing *Compiler, t functionType) *Compiler {
	c := &Compiler{
		enclosing: enclosing,
		fnType:    t,
		proto: &value.FunctionProto{
			ModuleName: p.moduleName,
			Chunk:      value.NewChunk(),
		},
	}
	if t != typeScript {
		c.proto.Name = p.prev.Lexeme
	}
	// Slot 0 is reserved for `this` in methods, or unused (nil) otherwise,
	// matching the reference compiler's synthetic "first local".
	slotName := ""
	if t == typeMethod || t == typeInitializer {
		slotName = "this"
	}
	c.locals[0] = local{name: slotName, depth: 0}
	c.localCount = 1
	return c
}

// --- token plumbing -------------------------------------------------

func (p *Parser) advance() {
	p.prev = p.current
	for {
		p.current = p.scanner.NextToken()
		if p.current.Type != lexer.ERROR {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (p *Parser) check(t lexer.TokenType) bool { return p.current.Type == t }

func (p *Parser) match(t lexer.TokenType) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(t lexer.TokenType, message string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(message)
}

func (p *Parser) errorAtCurrent(message string) { p.errorAt(p.current, message) }
func (p *Parser) error(message string)          { p.errorAt(p.prev, message) }

func (p *Parser) errorAt(tok lexer.Token, message string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.hadError = true
	where := ""
	switch tok.Type {
	case lexer.EOF:
		where = " at end"
	case lexer.ERROR:
		// nothing
	default:
		where = " at '" + tok.Lexeme + "'"
	}
	p.errs = append(p.errs, fmt.Sprintf("[line %d] Error%s: %s", tok.Line, where, message))
}

// --- bytecode emission ----------------------------------------------

func (p *Parser) chunk() *value.Chunk { return p.c.proto.Chunk }

func (p *Parser) emitByte(b byte) { p.chunk().Write(b, p.prev.Line) }

func (p *Parser) emitOp(op OpCode) { p.emitByte(byte(op)) }

func (p *Parser) emitOpByte(op OpCode, b byte) {
	p.emitByte(byte(op))
	p.emitByte(b)
}

func (p *Parser) emitLoop(loopStart int) {
	p.emitOp(OpLoop)
	offset := len(p.chunk().Code) - loopStart + 2
	if offset > 0xFFFF {
		p.error("loop body too large")
	}
	p.emitByte(byte(offset >> 8))
	p.emitByte(byte(offset))
}

func (p *Parser) emitJump(op OpCode) int {
	p.emitOp(op)
	p.emitByte(0xFF)
	p.emitByte(0xFF)
	return len(p.chunk().Code) - 2
}

func (p *Parser) patchJump(offset int) {
	jump := len(p.chunk().Code) - offset - 2
	if jump > 0xFFFF {
		p.error("too much code to jump over")
	}
	p.chunk().Code[offset] = byte(jump >> 8)
	p.chunk().Code[offset+1] = byte(jump)
}

func (p *Parser) emitReturn() {
	if p.c.fnType == typeInitializer {
		p.emitOpByte(OpGetLocal, 0)
	} else {
		p.emitOp(OpNil)
	}
	p.emitOp(OpReturn)
}

func (p *Parser) makeConstant(v value.Value) byte {
	idx := p.chunk().AddConstant(v)
	if idx > 0xFF {
		p.error("too many constants in one chunk")
		return 0
	}
	return byte(idx)
}

func (p *Parser) emitConstant(v value.Value) {
	p.emitOpByte(OpConstant, p.makeConstant(v))
}

func (p *Parser) identifierConstant(name string) byte {
	return p.makeConstant(value.Str(p.intern(name)))
}

// intern is overridden by SetInterner in practice; by default it
// allocates an uninterned *value.String, which is only safe for
// Compile callers that do not care about cross-chunk string identity
// (tests). Real compilation always goes through SetInterner.
var internFn func(string) *value.String = func(s string) *value.String {
	return &value.String{Value: s, Hash: value.HashString(s)}
}

func (p *Parser) intern(s string) *value.String { return internFn(s) }

// SetInterner lets the VM/importer wire the shared gc.Collector string
// pool into every compilation, so that constant-pool strings and
// runtime strings are the same interned objects (invariant 1).
func SetInterner(f func(string) *value.String) { internFn = f }

// --- scope management -------------------------------------------------

func (p *Parser) beginScope() { p.c.scopeDepth++ }

func (p *Parser) endScope() {
	p.c.scopeDepth--
	for p.c.localCount > 0 && p.c.locals[p.c.localCount-1].depth > p.c.scopeDepth {
		if p.c.locals[p.c.localCount-1].isCaptured {
			p.emitOp(OpCloseUpvalue)
		} else {
			p.emitOp(OpPop)
		}
		p.c.localCount--
	}
}

func (p *Parser) endCompiler() *value.FunctionProto {
	p.emitReturn()
	proto := p.c.proto
	proto.UpvalueCount = countUpvalues(p.c)
	if p.disasm {
		fmt.Fprintln(os.Stderr, Disassemble(proto.Chunk, protoLabel(proto)))
	}
	p.c = p.c.enclosing
	return proto
}

func countUpvalues(c *Compiler) int {
	n := 0
	for i := 0; i < maxLocals; i++ {
		if c.upvalues[i].index != 0 || c.upvalues[i].isLocal {
			n = i + 1
		}
	}
	return n
}

func protoLabel(proto *value.FunctionProto) string {
	if proto.Name == "" {
		return "<script " + proto.ModuleName + ">"
	}
	return proto.Name
}

// --- variable resolution ----------------------------------------------

func resolveLocal(c *Compiler, name string) int {
	for i := c.localCount - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			if c.locals[i].depth == -1 {
				return -2 // sentinel: used before its own initializer finished
			}
			return i
		}
	}
	return -1
}

func addUpvalue(c *Compiler, index int, isLocal bool) int {
	count := countUpvalues(c)
	for i := 0; i < count; i++ {
		if c.upvalues[i].index == index && c.upvalues[i].isLocal == isLocal {
			return i
		}
	}
	if count >= maxLocals {
		return 0
	}
	c.upvalues[count] = upvalueRef{index: index, isLocal: isLocal}
	return count
}

func resolveUpvalue(c *Compiler, name string) int {
	if c.enclosing == nil {
		return -1
	}
	if l := resolveLocal(c.enclosing, name); l >= 0 {
		c.enclosing.locals[l].isCaptured = true
		return addUpvalue(c, l, true)
	}
	if u := resolveUpvalue(c.enclosing, name); u >= 0 {
		return addUpvalue(c, u, false)
	}
	return -1
}

func (p *Parser) addLocal(name string) {
	if p.c.localCount == maxLocals {
		p.error("too many local variables in function")
		return
	}
	p.c.locals[p.c.localCount] = local{name: name, depth: -1}
	p.c.localCount++
}

func (p *Parser) declareVariable() {
	if p.c.scopeDepth == 0 {
		return
	}
	name := p.prev.Lexeme
	for i := p.c.localCount - 1; i >= 0; i-- {
		l := p.c.locals[i]
		if l.depth != -1 && l.depth < p.c.scopeDepth {
			break
		}
		if name == l.name {
			p.error("Already a variable with this name in this scope")
		}
	}
	p.addLocal(name)
}

func (p *Parser) parseVariable(errMsg string) byte {
	p.consume(lexer.IDENTIFIER, errMsg)
	p.declareVariable()
	if p.c.scopeDepth > 0 {
		return 0
	}
	return p.identifierConstant(p.prev.Lexeme)
}

func (p *Parser) markInitialized() {
	if p.c.scopeDepth == 0 {
		return
	}
	p.c.locals[p.c.localCount-1].depth = p.c.scopeDepth
}

func (p *Parser) defineVariable(global byte) {
	if p.c.scopeDepth > 0 {
		p.markInitialized()
		return
	}
	p.emitOpByte(OpDefineGlobal, global)
}

// --- optional type-annotation skipping ---------------------------------

// skipTypeAnnotation consumes and discards a `: Type` suffix after a
// parameter or variable name, per spec §4.E: type annotations are
// parsed for syntax compatibility but carry no runtime effect.
func (p *Parser) skipTypeAnnotation() {
	if !p.match(lexer.COLON) {
		return
	}
	// A type expression is any primary/dotted identifier chain, optionally
	// subscripted (e.g. `List[Int]`); we only need to consume tokens
	// balanced enough to resume statement parsing, not validate it.
	depth := 0
	for {
		switch p.current.Type {
		case lexer.LEFT_BRACKET:
			depth++
		case lexer.RIGHT_BRACKET:
			if depth == 0 {
				return
			}
			depth--
		case lexer.COMMA, lexer.EQUAL, lexer.RIGHT_PAREN, lexer.COLON, lexer.NEWLINE, lexer.EOF:
			if depth == 0 {
				return
			}
		}
		p.advance()
	}
}
