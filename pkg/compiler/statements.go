package compiler

import (
	"github.com/nebula-lang/nebula/pkg/ast"
	"github.com/nebula-lang/nebula/pkg/token"
)

// Statement keywords are recognized by upper-cased IDENTIFIER spelling
// rather than a lexer Kind (the tokenizer only classifies the words
// that change *expression* grammar). isKeyword reports whether the
// current identifier names a word from the closed statement set.
var statementKeywords = map[string]bool{
	"ABORT": true, "BIND": true, "BREAK": true, "CALL": true, "CASE": true,
	"CONTINUE": true, "CREATEKEYMAP": true, "CREATEPLANETPROPERTY": true,
	"CREATESHIPPROPERTY": true, "DIM": true, "DO": true, "ELSE": true,
	"END": true, "ENDFUNCTION": true, "ENDIF": true, "ENDON": true,
	"ENDSELECT": true, "ENDSTRUCT": true, "ENDSUB": true, "ENDTRY": true,
	"ENDWITH": true, "EVAL": true, "FOR": true, "FOREACH": true,
	"FUNCTION": true, "IF": true, "LOAD": true, "LOCAL": true, "LOOP": true,
	"NEXT": true, "ON": true, "OPTION": true, "PRINT": true, "REDIM": true,
	"RESTART": true, "RETURN": true, "RUNHOOK": true, "SELECT": true,
	"SELECTIONEXEC": true, "SHARED": true, "STATIC": true, "STOP": true,
	"STRUCT": true, "SUB": true, "SUSPEND": true, "TRY": true, "TRYLOAD": true,
	"UNTIL": true, "USEKEYMAP": true, "WAIT": true, "WHILE": true, "WITH": true,
}

func (p *Parser) curKeyword(name string) bool {
	return p.curIs(token.IDENTIFIER) && p.cur.Literal == name
}

// StatementKeywords returns every word of the closed statement-keyword
// set, for consumers (completion, syntax highlighting) that need the same
// list the parser itself recognizes without duplicating it.
func StatementKeywords() []string {
	out := make([]string, 0, len(statementKeywords))
	for k := range statementKeywords {
		out = append(out, k)
	}
	return out
}

// ParseProgram parses an entire source unit into a list of statements,
// stopping at end-of-input.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.curIs(token.EOF) {
		stmt := p.parseStatement()
		if stmt == nil {
			p.advance() // error recovery: skip the offending token
			continue
		}
		prog.Statements = append(prog.Statements, stmt)
	}
	return prog
}

// parseBlock parses statements until one of the given terminator
// keywords is seen (without consuming the terminator).
func (p *Parser) parseBlock(terminators ...string) []ast.Statement {
	var stmts []ast.Statement
	for !p.curIs(token.EOF) {
		for _, term := range terminators {
			if p.curKeyword(term) {
				return stmts
			}
		}
		stmt := p.parseStatement()
		if stmt == nil {
			p.advance()
			continue
		}
		stmts = append(stmts, stmt)
	}
	return stmts
}

func (p *Parser) parseStatement() ast.Statement {
	line := p.cur.Line

	if p.curIs(token.IDENTIFIER) && statementKeywords[p.cur.Literal] {
		switch p.cur.Literal {
		case "DIM":
			return p.parseDim(line)
		case "REDIM":
			return p.parseReDim(line)
		case "SUB":
			return p.parseSubDecl(line)
		case "FUNCTION":
			return p.parseFunctionDecl(line)
		case "STRUCT":
			return p.parseStructDecl(line)
		case "IF":
			return p.parseIf(line)
		case "FOR":
			return p.parseFor(line)
		case "FOREACH":
			return p.parseForEach(line)
		case "WHILE":
			return p.parseWhile(line)
		case "DO":
			return p.parseDoLoop(line)
		case "SELECT":
			return p.parseSelect(line)
		case "WITH":
			return p.parseWith(line)
		case "TRY":
			return p.parseTry(line)
		case "BREAK":
			p.advance()
			return &ast.BreakStatement{Base: baseAt(line)}
		case "CONTINUE":
			p.advance()
			return &ast.ContinueStatement{Base: baseAt(line)}
		case "RETURN":
			return p.parseReturn(line)
		case "STOP":
			p.advance()
			return &ast.StopStatement{Base: baseAt(line)}
		case "ABORT":
			return p.parseAbort(line)
		case "RESTART":
			p.advance()
			return &ast.RestartStatement{Base: baseAt(line)}
		case "SUSPEND":
			p.advance()
			return &ast.SuspendStatement{Base: baseAt(line)}
		case "WAIT":
			p.advance()
			return &ast.WaitStatement{Base: baseAt(line)}
		case "CALL":
			return p.parseCall(line)
		case "EVAL":
			return p.parseEval(line)
		case "PRINT":
			return p.parsePrint(line)
		case "LOAD":
			return p.parseLoad(line, false)
		case "TRYLOAD":
			return p.parseLoad(line, true)
		case "BIND":
			return p.parseBind(line)
		case "ON":
			return p.parseOn(line)
		case "CREATEKEYMAP":
			return p.parseCreateKeymap(line)
		case "USEKEYMAP":
			return p.parseUseKeymap(line)
		case "CREATESHIPPROPERTY":
			return p.parseCreateProperty(line, true)
		case "CREATEPLANETPROPERTY":
			return p.parseCreateProperty(line, false)
		case "RUNHOOK":
			return p.parseRunHook(line)
		case "OPTION":
			return p.parseOption(line)
		case "SELECTIONEXEC":
			return p.parseSelectionExec(line)
		default:
			// Local/Shared/Static/Case/Else/End*/Loop/Next/Until appear only
			// as sub-clause introducers consumed by their owning parse*
			// function; seeing one here means a structural error upstream.
			p.errorf("unexpected statement keyword %s", p.cur.Literal)
			return nil
		}
	}

	return p.parseExpressionStatement(line)
}

func (p *Parser) parseExpressionStatement(line int) ast.Statement {
	expr := p.ParseExpression()
	if expr == nil {
		return nil
	}
	return &ast.ExpressionStatement{Base: baseAt(line), Expr: expr}
}

// baseAt builds the embedded ast.Base field carrying a statement's
// source line.
func baseAt(line int) ast.Base {
	return ast.Base{SourceLine: line}
}

func (p *Parser) parseDim(line int) ast.Statement {
	p.advance() // Dim
	scope := "Local"
	if p.curKeyword("LOCAL") || p.curKeyword("SHARED") || p.curKeyword("STATIC") {
		scope = map[string]string{"LOCAL": "Local", "SHARED": "Shared", "STATIC": "Static"}[p.cur.Literal]
		p.advance()
	}
	if !p.curIs(token.IDENTIFIER) {
		p.errorf("expected variable name after Dim")
		return nil
	}
	name := p.cur.Literal
	p.advance()

	d := &ast.DimStatement{Scope: scope, Name: name}
	d.SourceLine = line

	if p.curKeyword("AS") {
		p.advance()
		if p.curIs(token.IDENTIFIER) {
			d.Struct = p.cur.Literal
			p.advance()
		}
		return d
	}
	if p.curIs(token.EQ) {
		p.advance()
		d.Init = p.parseExpression(precAssignment)
	}
	return d
}

func (p *Parser) parseReDim(line int) ast.Statement {
	p.advance() // ReDim
	name := p.cur.Literal
	p.advance()
	var dims []ast.Expression
	if p.curIs(token.LPAREN) {
		p.advance()
		dims = p.parseArgList(token.RPAREN)
	}
	r := &ast.ReDimStatement{Name: name, Dims: dims}
	r.SourceLine = line
	return r
}

func (p *Parser) parseParamList() (params []ast.Param, variadic bool) {
	if !p.curIs(token.LPAREN) {
		return nil, false
	}
	p.advance()
	for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
		if p.curIs(token.IDENTIFIER) {
			params = append(params, ast.Param{Name: p.cur.Literal})
			p.advance()
		}
		if p.curIs(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RPAREN)
	return params, false
}

func (p *Parser) parseSubDecl(line int) ast.Statement {
	p.advance() // Sub
	name := p.cur.Literal
	p.advance()
	params, variadic := p.parseParamList()
	body := p.parseBlock("ENDSUB")
	p.advance() // EndSub
	return &ast.SubDecl{Base: baseAt(line), Name: name, Params: params, Variadic: variadic, Body: body}
}

func (p *Parser) parseFunctionDecl(line int) ast.Statement {
	p.advance() // Function
	name := p.cur.Literal
	p.advance()
	params, variadic := p.parseParamList()
	body := p.parseBlock("ENDFUNCTION")
	p.advance() // EndFunction
	return &ast.FunctionDecl{Base: baseAt(line), Name: name, Params: params, Variadic: variadic, Body: body}
}

func (p *Parser) parseStructDecl(line int) ast.Statement {
	p.advance() // Struct
	name := p.cur.Literal
	p.advance()
	var fields []string
	for !p.curKeyword("ENDSTRUCT") && !p.curIs(token.EOF) {
		if p.curIs(token.IDENTIFIER) {
			fields = append(fields, p.cur.Literal)
			p.advance()
		} else {
			p.advance()
		}
	}
	p.advance() // EndStruct
	return &ast.StructDecl{Base: baseAt(line), Name: name, Fields: fields}
}

func (p *Parser) parseIf(line int) ast.Statement {
	p.advance() // If
	cond := p.ParseExpression()
	if p.curKeyword("THEN") {
		p.advance()
	}
	then := p.parseBlock("ELSE", "ENDIF")
	var els []ast.Statement
	if p.curKeyword("ELSE") {
		p.advance()
		els = p.parseBlock("ENDIF")
	}
	p.advance() // EndIf
	return &ast.IfStatement{Base: baseAt(line), Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseFor(line int) ast.Statement {
	p.advance() // For
	varName := p.cur.Literal
	p.advance()
	p.expect(token.ASSIGN)
	from := p.parseExpression(precAssignment)
	if p.curKeyword("TO") {
		p.advance()
	}
	to := p.parseExpression(precAssignment)
	var step ast.Expression
	if p.curKeyword("STEP") {
		p.advance()
		step = p.parseExpression(precAssignment)
	}
	if p.curKeyword("DO") {
		p.advance()
	}
	body := p.parseBlock("NEXT")
	p.advance() // Next
	return &ast.ForStatement{Base: baseAt(line), Var: varName, From: from, To: to, Step: step, Body: body}
}

func (p *Parser) parseForEach(line int) ast.Statement {
	p.advance() // ForEach
	varName := p.cur.Literal
	p.advance()
	if p.curKeyword("IN") {
		p.advance()
	}
	collection := p.parseExpression(precAssignment)
	if p.curKeyword("DO") {
		p.advance()
	}
	body := p.parseBlock("NEXT")
	p.advance() // Next
	return &ast.ForEachStatement{Base: baseAt(line), Var: varName, Collection: collection, Body: body}
}

func (p *Parser) parseWhile(line int) ast.Statement {
	p.advance() // While
	cond := p.parseExpression(precAssignment)
	if p.curKeyword("DO") {
		p.advance()
	}
	body := p.parseBlock("LOOP")
	p.advance() // Loop
	return &ast.WhileStatement{Base: baseAt(line), Cond: cond, Body: body}
}

func (p *Parser) parseDoLoop(line int) ast.Statement {
	p.advance() // Do
	stmt := &ast.DoLoopStatement{}
	stmt.SourceLine = line

	if p.curKeyword("WHILE") || p.curKeyword("UNTIL") {
		stmt.Until = p.curKeyword("UNTIL")
		stmt.CondFirst = true
		p.advance()
		stmt.Cond = p.parseExpression(precAssignment)
	}

	stmt.Body = p.parseBlock("LOOP")
	p.advance() // Loop

	if !stmt.CondFirst && (p.curKeyword("WHILE") || p.curKeyword("UNTIL")) {
		stmt.Until = p.curKeyword("UNTIL")
		p.advance()
		stmt.Cond = p.parseExpression(precAssignment)
	}
	return stmt
}

func (p *Parser) parseSelect(line int) ast.Statement {
	p.advance() // Select
	if p.curKeyword("CASE") {
		p.advance()
	}
	expr := p.parseExpression(precAssignment)

	var cases []ast.CaseClause
	for p.curKeyword("CASE") {
		p.advance()
		var matches []ast.Expression
		if !p.curKeyword("ELSE") {
			matches = append(matches, p.parseExpression(precAssignment))
			for p.curIs(token.COMMA) {
				p.advance()
				matches = append(matches, p.parseExpression(precAssignment))
			}
		} else {
			p.advance() // Else
		}
		body := p.parseBlock("CASE", "ENDSELECT")
		cases = append(cases, ast.CaseClause{Matches: matches, Body: body})
	}
	p.advance() // EndSelect
	return &ast.SelectStatement{Base: baseAt(line), Expr: expr, Cases: cases}
}

func (p *Parser) parseWith(line int) ast.Statement {
	p.advance() // With
	expr := p.parseExpression(precAssignment)
	if p.curKeyword("DO") {
		p.advance()
	}
	body := p.parseBlock("ENDWITH")
	p.advance() // EndWith
	return &ast.WithStatement{Base: baseAt(line), Expr: expr, Body: body}
}

func (p *Parser) parseTry(line int) ast.Statement {
	p.advance() // Try
	body := p.parseBlock("ENDTRY")
	p.advance() // EndTry
	return &ast.TryStatement{Base: baseAt(line), Body: body}
}

func (p *Parser) parseReturn(line int) ast.Statement {
	p.advance() // Return
	r := &ast.ReturnStatement{}
	r.SourceLine = line
	if !p.curIs(token.EOF) && !isStatementBoundary(p) {
		r.Value = p.parseExpression(precAssignment)
	}
	return r
}

// isStatementBoundary reports whether the current token cannot begin an
// expression, used by bare-optional-argument statements (Return, Abort)
// to decide whether a trailing expression is actually present.
func isStatementBoundary(p *Parser) bool {
	if p.curIs(token.IDENTIFIER) && statementKeywords[p.cur.Literal] {
		return true
	}
	return false
}

func (p *Parser) parseAbort(line int) ast.Statement {
	p.advance() // Abort
	a := &ast.AbortStatement{}
	a.SourceLine = line
	if !p.curIs(token.EOF) && !isStatementBoundary(p) {
		a.Message = p.parseExpression(precAssignment)
	}
	return a
}

func (p *Parser) parseCall(line int) ast.Statement {
	p.advance() // Call
	callee := p.parseExpression(precPrimary)
	var args []ast.Expression
	if ic, ok := callee.(*ast.IndirectCall); ok {
		return &ast.CallStatement{Base: baseAt(line), Callee: ic.Callee, Args: ic.Args}
	}
	return &ast.CallStatement{Base: baseAt(line), Callee: callee, Args: args}
}

func (p *Parser) parseEval(line int) ast.Statement {
	p.advance() // Eval
	lines := []ast.Expression{p.parseExpression(precAssignment)}
	for p.curIs(token.COMMA) {
		p.advance()
		lines = append(lines, p.parseExpression(precAssignment))
	}
	return &ast.EvalStatement{Base: baseAt(line), Lines: lines}
}

func (p *Parser) parsePrint(line int) ast.Statement {
	p.advance() // Print
	args := []ast.Expression{p.parseExpression(precAssignment)}
	for p.curIs(token.COMMA) {
		p.advance()
		args = append(args, p.parseExpression(precAssignment))
	}
	return &ast.PrintStatement{Base: baseAt(line), Args: args}
}

// parseLoad handles both Load and TryLoad: `Load target := sub(args)` or
// a bare `Load sub(args)` discarding the result.
func (p *Parser) parseLoad(line int, tryLoad bool) ast.Statement {
	p.advance() // Load / TryLoad
	expr := p.parseExpression(precAssignment)

	var target, calleeExpr ast.Expression
	args := []ast.Expression{}
	if assign, ok := expr.(*ast.Assignment); ok {
		target = assign.Target
		expr = assign.Value
	}
	if ic, ok := expr.(*ast.IndirectCall); ok {
		calleeExpr = ic.Callee
		args = ic.Args
	} else {
		calleeExpr = expr
	}

	if tryLoad {
		return &ast.TryLoadStatement{Base: baseAt(line), Callee: calleeExpr, Args: args, Target: target}
	}
	return &ast.LoadStatement{Base: baseAt(line), Callee: calleeExpr, Args: args, Target: target}
}

func (p *Parser) parseBind(line int) ast.Statement {
	p.advance() // Bind
	name := p.cur.Literal
	p.advance()
	p.expect(token.ASSIGN)
	expr := p.parseExpression(precAssignment)
	var args []ast.Expression
	calleeExpr := expr
	if ic, ok := expr.(*ast.IndirectCall); ok {
		calleeExpr = ic.Callee
		args = ic.Args
	}
	return &ast.BindStatement{Base: baseAt(line), Name: name, Callee: calleeExpr, Args: args}
}

func (p *Parser) parseOn(line int) ast.Statement {
	p.advance() // On
	event := p.cur.Literal
	p.advance()
	if p.curKeyword("DO") {
		p.advance()
	}
	body := p.parseBlock("ENDON")
	p.advance() // EndOn
	return &ast.OnStatement{Base: baseAt(line), Event: event, Body: body}
}

func (p *Parser) parseCreateKeymap(line int) ast.Statement {
	p.advance() // CreateKeymap
	name := p.cur.Literal
	p.advance()
	var parents []string
	for p.curKeyword("PARENT") {
		p.advance()
		parents = append(parents, p.cur.Literal)
		p.advance()
		if p.curIs(token.COMMA) {
			p.advance()
		}
	}
	return &ast.CreateKeymapStatement{Base: baseAt(line), Name: name, Parents: parents}
}

func (p *Parser) parseUseKeymap(line int) ast.Statement {
	p.advance() // UseKeymap
	name := p.cur.Literal
	p.advance()
	return &ast.UseKeymapStatement{Base: baseAt(line), Name: name}
}

func (p *Parser) parseCreateProperty(line int, ship bool) ast.Statement {
	p.advance() // CreateShipProperty / CreatePlanetProperty
	name := p.cur.Literal
	p.advance()
	if ship {
		return &ast.CreateShipPropertyStatement{Base: baseAt(line), Name: name}
	}
	return &ast.CreatePlanetPropertyStatement{Base: baseAt(line), Name: name}
}

func (p *Parser) parseRunHook(line int) ast.Statement {
	p.advance() // RunHook
	name := p.cur.Literal
	p.advance()
	return &ast.RunHookStatement{Base: baseAt(line), Name: name}
}

func (p *Parser) parseOption(line int) ast.Statement {
	p.advance() // Option
	name := p.cur.Literal
	p.advance()
	var val ast.Expression
	if p.curIs(token.COMMA) {
		p.advance()
		val = p.parseExpression(precAssignment)
	}
	return &ast.OptionStatement{Base: baseAt(line), Name: name, Value: val}
}

func (p *Parser) parseSelectionExec(line int) ast.Statement {
	p.advance() // SelectionExec
	expr := p.parseExpression(precAssignment)
	return &ast.SelectionExecStatement{Base: baseAt(line), Expr: expr}
}
