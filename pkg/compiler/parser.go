// Package compiler implements the expression parser, statement compiler,
// peephole optimizer, and built-in dispatch table, turning tokens from
// pkg/lexer into a pkg/bytecode.BCO via pkg/ast.
package compiler

import (
	"fmt"
	"strconv"

	"github.com/nebula-lang/nebula/pkg/ast"
	"github.com/nebula-lang/nebula/pkg/lexer"
	"github.com/nebula-lang/nebula/pkg/token"
)

// precedence levels, low to high.
const (
	precLowest = iota
	precSequence
	precAssignment
	precOr
	precAnd
	precNot
	precComparison
	precConcat
	precAdditive
	precMultiplicative
	precUnarySign
	precPower
	precPrimary
)

var binaryPrecedence = map[token.Kind]int{
	token.SEMICOLON: precSequence,
	token.ASSIGN:    precAssignment,
	token.OR:        precOr,
	token.XOR:       precOr,
	token.AND:       precAnd,
	token.EQ:        precComparison,
	token.NE:        precComparison,
	token.LT:        precComparison,
	token.GT:        precComparison,
	token.LE:        precComparison,
	token.GE:        precComparison,
	token.HASH:      precConcat,
	token.AMP:       precConcat,
	token.PLUS:      precAdditive,
	token.MINUS:     precAdditive,
	token.STAR:      precMultiplicative,
	token.SLASH:     precMultiplicative,
	token.BACKSLASH: precMultiplicative,
	token.MOD:       precMultiplicative,
	token.CARET:     precPower,
	token.LPAREN:    precPrimary,
	token.DOT:       precPrimary,
}

// Parser is a Pratt expression parser plus the primary-suffix grammar
// (call/member chains). It is driven directly off a *lexer.Lexer;
// pkg/compiler's statement-level recursive-descent parser (statements.go)
// shares one Parser per compilation unit so both halves see one token
// stream and one CaseSensitive flag.
type Parser struct {
	l *lexer.Lexer

	cur  token.Token
	peek token.Token

	// caseSensitive is the ambient comparison-mode flag; StrCase(e)
	// temporarily overrides it for e's subtree only.
	caseSensitive bool

	builtins *BuiltinTable

	errors []string
}

// NewParser creates a Parser reading from source.
func NewParser(source string, builtins *BuiltinTable) *Parser {
	p := &Parser{l: lexer.New(source), builtins: builtins}
	p.advance()
	p.advance()
	return p
}

func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf("line %d: %s", p.cur.Line, fmt.Sprintf(format, args...)))
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) curIs(k token.Kind) bool  { return p.cur.Kind == k }
func (p *Parser) peekIs(k token.Kind) bool { return p.peek.Kind == k }

func (p *Parser) expect(k token.Kind) bool {
	if p.curIs(k) {
		p.advance()
		return true
	}
	p.errorf("expected %s, got %s %q", k, p.cur.Kind, p.cur.Literal)
	return false
}

// ParseExpression parses a full expression at precLowest (the Sequence
// level), the entry point used by statement contexts that embed a bare
// expression.
func (p *Parser) ParseExpression() ast.Expression {
	return p.parseExpression(precLowest)
}

// parseExpression implements the Pratt loop: a prefix parselet forms the
// left operand, then infix parselets consume as long as their
// precedence binds tighter than minPrec.
func (p *Parser) parseExpression(minPrec int) ast.Expression {
	left := p.parsePrefix()
	if left == nil {
		return nil
	}

	for {
		prec, ok := binaryPrecedence[p.cur.Kind]
		if !ok || prec <= minPrec {
			break
		}
		left = p.parseInfix(left, prec)
	}
	return left
}

func (p *Parser) parsePrefix() ast.Expression {
	switch p.cur.Kind {
	case token.NOT:
		p.advance()
		operand := p.parseExpression(precNot)
		return &ast.Not{Operand: operand}
	case token.PLUS, token.MINUS:
		op := p.cur.Literal
		p.advance()
		operand := p.parseExpression(precUnarySign - 1)
		return &ast.Unary{Op: op, Operand: operand}
	case token.HASH:
		p.advance()
		operand := p.parseExpression(precPrimary)
		return p.parseSuffixes(&ast.FileNumber{Operand: operand})
	case token.LPAREN:
		p.advance()
		inner := p.parseExpression(precLowest)
		p.expect(token.RPAREN)
		return p.parseSuffixes(inner)
	case token.INTEGER:
		lit := p.cur.Literal
		p.advance()
		n, err := strconv.ParseInt(lit, 10, 32)
		if err != nil {
			p.errorf("invalid integer literal %q", lit)
			return nil
		}
		return &ast.IntegerLiteral{Value: int32(n)}
	case token.FLOAT:
		lit := p.cur.Literal
		p.advance()
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			p.errorf("invalid float literal %q", lit)
			return nil
		}
		return &ast.FloatLiteral{Value: f}
	case token.STRING:
		lit := p.cur.Literal
		p.advance()
		return &ast.StringLiteral{Value: lit}
	case token.TRUE:
		p.advance()
		return &ast.BooleanLiteral{Value: true}
	case token.FALSE:
		p.advance()
		return &ast.BooleanLiteral{Value: false}
	case token.IDENTIFIER:
		return p.parseIdentifierOrCall()
	default:
		p.errorf("unexpected token %s %q in expression", p.cur.Kind, p.cur.Literal)
		return nil
	}
}

// parseIdentifierOrCall parses a bare identifier, dispatching to the
// built-ins table when the name is a known compile-time intrinsic and
// is immediately followed by '(' (a built-in-function call site).
func (p *Parser) parseIdentifierOrCall() ast.Expression {
	name := p.cur.Literal
	p.advance()

	if p.curIs(token.LPAREN) && p.builtins != nil {
		if entry, ok := p.builtins.Lookup(name); ok {
			return p.parseBuiltinCall(entry)
		}
	}

	var expr ast.Expression = &ast.Identifier{Name: name}
	return p.parseSuffixes(expr)
}

// parseSuffixes consumes the trailing chain of call/member suffixes that
// follow a primary expression: `expr(args)` and `expr.field`.
func (p *Parser) parseSuffixes(expr ast.Expression) ast.Expression {
	for {
		switch p.cur.Kind {
		case token.LPAREN:
			p.advance()
			args := p.parseArgList(token.RPAREN)
			expr = &ast.IndirectCall{Callee: expr, Args: args}
		case token.DOT:
			p.advance()
			if !p.curIs(token.IDENTIFIER) {
				p.errorf("expected field name after '.'")
				return expr
			}
			field := p.cur.Literal
			p.advance()
			expr = &ast.Member{Receiver: expr, Field: field}
		default:
			return expr
		}
	}
}

func (p *Parser) parseArgList(end token.Kind) []ast.Expression {
	var args []ast.Expression
	if p.curIs(end) {
		p.advance()
		return args
	}
	args = append(args, p.parseExpression(precAssignment))
	for p.curIs(token.COMMA) {
		p.advance()
		args = append(args, p.parseExpression(precAssignment))
	}
	p.expect(end)
	return args
}

func (p *Parser) parseBuiltinCall(entry BuiltinEntry) ast.Expression {
	p.advance() // consume '('

	// StrCase(e) forces every Binary comparison inside e's subtree to be
	// case-sensitive, restoring the ambient flag once e is parsed so the
	// override never leaks past its own argument list.
	if entry.Kind == BuiltinStrCase {
		prev := p.caseSensitive
		p.caseSensitive = true
		args := p.parseArgList(token.RPAREN)
		p.caseSensitive = prev
		if len(args) < entry.MinArgs || (entry.MaxArgs >= 0 && len(args) > entry.MaxArgs) {
			p.errorf("%s expects %d to %d arguments, got %d", entry.Name, entry.MinArgs, entry.MaxArgs, len(args))
		}
		return &ast.BuiltinCall{Name: entry.Name, Args: args}
	}

	args := p.parseArgList(token.RPAREN)
	if len(args) < entry.MinArgs || (entry.MaxArgs >= 0 && len(args) > entry.MaxArgs) {
		p.errorf("%s expects %d to %d arguments, got %d", entry.Name, entry.MinArgs, entry.MaxArgs, len(args))
	}
	return &ast.BuiltinCall{Name: entry.Name, Args: args}
}

func (p *Parser) parseInfix(left ast.Expression, prec int) ast.Expression {
	switch p.cur.Kind {
	case token.SEMICOLON:
		p.advance()
		right := p.parseExpression(prec)
		return &ast.Sequence{First: left, Second: right}
	case token.ASSIGN:
		p.advance()
		right := p.parseExpression(prec - 1) // right-associative
		return &ast.Assignment{Target: left, Value: right}
	case token.OR, token.XOR, token.AND:
		op := p.cur.Kind
		opLit := p.cur.Literal
		p.advance()
		right := p.parseExpression(prec)
		_ = op
		return &ast.Logical{Op: opLit, Left: left, Right: right}
	case token.CARET:
		p.advance()
		right := p.parseExpression(prec - 1) // right-associative
		return &ast.Power{Radix: left, Exponent: right}
	default:
		opLit := p.cur.Literal
		caseSensitive := p.caseSensitive
		p.advance()
		right := p.parseExpression(prec)
		return &ast.Binary{Op: opLit, Left: left, Right: right, CaseSensitive: caseSensitive}
	}
}
