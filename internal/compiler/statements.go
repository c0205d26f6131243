package compiler

import (
	"github.com/mtots-lang/mtots/internal/config"
	"github.com/mtots-lang/mtots/internal/lexer"
	"github.com/mtots-lang/mtots/internal/value"
)

const maxElifChain = config.MaxElifChain

func (p *Parser) declaration() {
	switch {
	case p.match(lexer.CLASS):
		p.classDeclaration()
	case p.match(lexer.DEF):
		p.funDeclaration()
	case p.match(lexer.VAR), p.match(lexer.FINAL):
		p.varDeclaration()
	case p.match(lexer.AT):
		p.decoratedFunDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *Parser) synchronize() {
	p.panicMode = false
	for p.current.Type != lexer.EOF {
		if p.prev.Type == lexer.SEMICOLON {
			return
		}
		switch p.current.Type {
		case lexer.CLASS, lexer.DEF, lexer.VAR, lexer.FINAL, lexer.FOR, lexer.IF, lexer.WHILE, lexer.RETURN:
			return
		}
		p.advance()
	}
}

func (p *Parser) statement() {
	switch {
	case p.match(lexer.FOR):
		p.forStatement()
	case p.match(lexer.IF):
		p.ifStatement()
	case p.match(lexer.RETURN):
		p.returnStatement()
	case p.match(lexer.WHILE):
		p.whileStatement()
	case p.match(lexer.IMPORT):
		p.importStatement()
	case p.match(lexer.NEWLINE), p.match(lexer.SEMICOLON):
		// empty statement
	case p.match(lexer.PASS):
		p.consumeStatementDelimiter("Expected statement delimiter at end of pass statement")
	default:
		p.expressionStatement()
	}
}

func (p *Parser) consumeStatementDelimiter(message string) {
	if !p.match(lexer.NEWLINE) {
		p.consume(lexer.SEMICOLON, message)
	}
}

func (p *Parser) expressionStatement() {
	p.expression()
	p.consumeStatementDelimiter("Expected statement delimiter after expression")
	p.emitOp(OpPop)
}

// block compiles an indented suite. newScope controls whether it opens
// its own lexical scope (loop/if bodies do; function bodies don't,
// since function() already opened one for parameters).
func (p *Parser) block(newScope bool) {
	if newScope {
		p.beginScope()
	}

	for p.match(lexer.NEWLINE) {
	}
	p.consume(lexer.INDENT, "Expect INDENT at begining of block")
	for p.match(lexer.NEWLINE) {
	}
	any := false
	for !p.check(lexer.DEDENT) && !p.check(lexer.EOF) {
		any = true
		p.declaration()
		for p.match(lexer.NEWLINE) {
		}
	}
	p.consume(lexer.DEDENT, "Expect DEDENT after block")
	if !any {
		p.error("Expected an indented block")
	}

	if newScope {
		p.endScope()
	}
}

// defaultArgument parses one of the handful of literal expressions the
// reference compiler permits as a default-argument value (spec §4.E:
// defaults must be compile-time constants).
func (p *Parser) defaultArgument() value.Value {
	switch {
	case p.match(lexer.NIL):
		return value.Nil()
	case p.match(lexer.TRUE):
		return value.Bool(true)
	case p.match(lexer.FALSE):
		return value.Bool(false)
	case p.match(lexer.NUMBER), p.match(lexer.NUMBER_HEX), p.match(lexer.NUMBER_BIN):
		n, err := parseNumberLexeme(p.prev.Type, p.prev.Lexeme)
		if err != nil {
			p.error(err.Error())
			return value.Nil()
		}
		return value.Number(n)
	case p.match(lexer.STRING), p.match(lexer.RAW_STRING):
		var s string
		if p.prev.Type == lexer.RAW_STRING {
			s = rawStringBody(p.prev.Lexeme)
		} else {
			s = unescapeString(p.prev.Lexeme)
		}
		return value.Str(p.intern(s))
	}
	p.error("Expected default argument expression")
	return value.Nil()
}


// function compiles a nested function/method body: parameter list with
// optional defaults followed by a `:`-delimited suite, emitting
// OP_CLOSURE with its upvalue table in the enclosing chunk.
func (p *Parser) function(t functionType) {
	enclosing := p.c
	p.c = p.newCompiler(enclosing, t)
	p.c.proto.ModuleName = enclosing.proto.ModuleName
	p.beginScope()

	p.consume(lexer.LEFT_PAREN, "Expect '(' after function name")
	if !p.check(lexer.RIGHT_PAREN) {
		for {
			p.c.proto.Arity++
			if p.c.proto.Arity > 255 {
				p.errorAtCurrent("Can't have more than 255 parameters")
			}
			constant := p.parseVariable("Expect parameter name")
			p.skipTypeAnnotation()
			p.defineVariable(constant)
			if len(p.c.defaultArgs) > 0 && !p.check(lexer.EQUAL) {
				p.error("non-optional argument may not follow an optional argument")
			}
			if p.match(lexer.EQUAL) {
				p.c.defaultArgs = append(p.c.defaultArgs, p.defaultArgument())
			}
			if !p.match(lexer.COMMA) {
				break
			}
		}
	}
	p.consume(lexer.RIGHT_PAREN, "Expect ')' after parameters")
	p.skipTypeAnnotation() // optional return-type annotation

	p.consume(lexer.COLON, "Expect ':' before function body")
	for p.match(lexer.NEWLINE) {
	}
	p.block(false)

	finished := p.c // upvalues are populated up to the moment endCompiler() unwinds p.c
	proto := p.endCompilerWithDefaults()
	p.emitOpByte(OpClosure, p.makeConstant(value.Obj(proto)))
	for i := 0; i < proto.UpvalueCount; i++ {
		p.emitByte(boolByte(finished.upvalues[i].isLocal))
		p.emitByte(byte(finished.upvalues[i].index))
	}
}

// endCompilerWithDefaults is endCompiler plus stashing the just-parsed
// default-argument vector onto the finished proto (reference function()
// does this inline after calling endCompiler()).
func (p *Parser) endCompilerWithDefaults() *value.FunctionProto {
	defaults := p.c.defaultArgs
	proto := p.endCompiler()
	proto.Defaults = defaults
	return proto
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func (p *Parser) method() {
	p.consume(lexer.DEF, "Expect 'def' to start method definition")
	p.consume(lexer.IDENTIFIER, "Expect method name")
	constant := p.identifierConstant(p.prev.Lexeme)

	t := typeMethod
	if p.prev.Lexeme == "__init__" {
		t = typeInitializer
	}
	p.function(t)
	p.emitOpByte(OpMethod, constant)
}

func (p *Parser) classDeclaration() {
	p.consume(lexer.IDENTIFIER, "Expect class name")
	className := p.prev.Lexeme
	nameConstant := p.identifierConstant(className)
	p.declareVariable()

	p.emitOpByte(OpClass, nameConstant)
	p.defineVariable(nameConstant)

	cc := &classCompiler{enclosing: p.class}
	p.class = cc

	if p.match(lexer.LEFT_PAREN) {
		if !p.match(lexer.RIGHT_PAREN) {
			p.expression()

			p.beginScope()
			p.addLocal("super")
			p.defineVariable(0)

			namedVariable(p, className, false)
			p.emitOp(OpInherit)
			cc.hasSuperclass = true

			p.consume(lexer.RIGHT_PAREN, "Expect ')' after superclass expression")
		}
	}

	namedVariable(p, className, false)
	p.consume(lexer.COLON, "Expect ':' before class body")
	for p.match(lexer.NEWLINE) {
	}
	p.consume(lexer.INDENT, "Expect INDENT before class body")
	for p.match(lexer.NEWLINE) {
	}
	if p.match(lexer.STRING) || p.match(lexer.RAW_STRING) {
		for p.match(lexer.NEWLINE) {
		}
	}
	for !p.check(lexer.DEDENT) && !p.check(lexer.EOF) {
		p.method()
		for p.match(lexer.NEWLINE) {
		}
	}
	p.consume(lexer.DEDENT, "Expect DEDENT after class body")
	p.emitOp(OpPop)

	if cc.hasSuperclass {
		p.endScope()
	}

	p.class = p.class.enclosing
}

func (p *Parser) funDeclaration() {
	global := p.parseVariable("Expect function name")
	p.markInitialized()
	p.function(typeFunction)
	p.defineVariable(global)
}

// decoratedFunDeclaration compiles `@decorator\ndef f(): ...`, wrapping
// the closure in one OP_CALL per decorator expression before binding it
// (spec's supplemented decorator-function feature, grounded on the
// reference's decoratedFunDeclaration).
func (p *Parser) decoratedFunDeclaration() {
	wrapCount := 0
	named := false
	var global byte
	for {
		p.expression()
		p.consumeStatementDelimiter("Expected statement delimiter after decorator expression")
		wrapCount++
		if !p.match(lexer.AT) {
			break
		}
	}

	p.consume(lexer.DEF, "Expect 'def' to start function after decorator expression")
	if p.check(lexer.IDENTIFIER) {
		named = true
		global = p.parseVariable("Expect function name")
		p.markInitialized()
	}
	p.function(typeFunction)

	for i := 0; i < wrapCount; i++ {
		p.emitOpByte(OpCall, 1)
	}

	if named {
		p.defineVariable(global)
	} else {
		p.emitOp(OpPop)
	}
}

func (p *Parser) varDeclaration() {
	global := p.parseVariable("Expect variable name")
	p.skipTypeAnnotation()

	if p.match(lexer.EQUAL) {
		p.expression()
	} else {
		p.emitOp(OpNil)
	}
	p.consumeStatementDelimiter("Expected statement delimiter after variable declaration")
	p.defineVariable(global)
}

func (p *Parser) forInStatement() {
	p.beginScope()

	p.consume(lexer.IDENTIFIER, "Expect loop variable name for for-in statement")
	varName := p.prev.Lexeme

	p.consume(lexer.IN, "Expect 'in' in for-in statement")
	p.expression()
	p.emitOp(OpGetIter)
	p.addLocal("@iterator")
	p.defineVariable(0)

	loopStart := len(p.chunk().Code)
	p.emitOp(OpGetNext)
	jump := p.emitJump(OpJumpIfStopIteration)

	p.beginScope()
	p.addLocal(varName)
	p.defineVariable(0)
	p.consume(lexer.COLON, "Expect ':' to begin for-in loop body")
	p.block(false)
	p.endScope()

	p.emitLoop(loopStart)
	p.patchJump(jump)
	p.emitOp(OpPop) // discard StopIteration sentinel

	p.endScope() // pops @iterator
}

func (p *Parser) forStatement() {
	if p.check(lexer.IDENTIFIER) {
		p.forInStatement()
		return
	}

	p.beginScope()
	p.consume(lexer.LEFT_PAREN, "Expect '(' after 'for'")
	switch {
	case p.match(lexer.SEMICOLON):
		// no initializer
	case p.match(lexer.VAR):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := len(p.chunk().Code)
	exitJump := -1
	if !p.match(lexer.SEMICOLON) {
		p.expression()
		p.consume(lexer.SEMICOLON, "Expect ';' after loop condition")
		exitJump = p.emitJump(OpJumpIfFalse)
		p.emitOp(OpPop)
	}

	if !p.match(lexer.RIGHT_PAREN) {
		bodyJump := p.emitJump(OpJump)
		incrementStart := len(p.chunk().Code)
		p.expression()
		p.emitOp(OpPop)
		p.consume(lexer.RIGHT_PAREN, "Expect ')' after for clauses")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	}

	p.consume(lexer.COLON, "Expect ':' for for body")
	p.block(true)
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitOp(OpPop)
	}

	p.endScope()
}

func (p *Parser) ifStatement() {
	p.expression()
	p.consume(lexer.COLON, "Expect ':' after condition")

	thenJump := p.emitJump(OpJumpIfFalse)
	p.emitOp(OpPop)
	p.block(true)
	var endJumps []int
	endJumps = append(endJumps, p.emitJump(OpJump))

	p.patchJump(thenJump)
	p.emitOp(OpPop)

	for p.match(lexer.ELIF) {
		if len(endJumps) >= maxElifChain {
			p.error("Too many chained 'elif' clauses")
		}
		p.expression()
		p.consume(lexer.COLON, "Expect ':' after elif condition")
		thenJump = p.emitJump(OpJumpIfFalse)
		p.emitOp(OpPop)
		p.block(true)
		endJump := p.emitJump(OpJump)
		p.patchJump(thenJump)
		p.emitOp(OpPop)
		if len(endJumps) < maxElifChain {
			endJumps = append(endJumps, endJump)
		}
	}

	if p.match(lexer.ELSE) {
		p.consume(lexer.COLON, "Expect ':' after 'else'")
		p.block(true)
	}

	for _, j := range endJumps {
		p.patchJump(j)
	}
}

func (p *Parser) importStatement() {
	p.consume(lexer.IDENTIFIER, "Expect module name after 'import'")
	moduleName := p.identifierConstant(p.prev.Lexeme)

	if p.match(lexer.AS) {
		p.consume(lexer.IDENTIFIER, "Expect module alias after 'as'")
	}

	p.declareVariable()
	var alias byte
	if p.c.scopeDepth == 0 {
		alias = p.identifierConstant(p.prev.Lexeme)
	}

	p.emitOpByte(OpImport, moduleName)
	p.defineVariable(alias)

	p.consumeStatementDelimiter("Expect statement delimiter after import statement")
}

func (p *Parser) returnStatement() {
	if p.c.fnType == typeScript {
		p.error("Can't return from top-level code")
	}

	if p.match(lexer.SEMICOLON) {
		p.emitReturn()
		return
	}
	if p.c.fnType == typeInitializer {
		p.error("Can't return a value from an initializer")
	}
	p.expression()
	p.consumeStatementDelimiter("Expect newline or ';' after return value")
	p.emitOp(OpReturn)
}

func (p *Parser) whileStatement() {
	loopStart := len(p.chunk().Code)
	p.expression()
	p.consume(lexer.COLON, "Expect ':' after condition")

	exitJump := p.emitJump(OpJumpIfFalse)
	p.emitOp(OpPop)
	p.block(true)
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitOp(OpPop)
}
